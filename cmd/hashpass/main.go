package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/vitos/trade_calls/internal/usecase"
)

// Prints the bcrypt hash to put in ADMIN_PASSWORD_HASH. The password is read
// from the first argument, or from stdin when no argument is given.
func main() {
	var password string
	if len(os.Args) > 1 {
		password = os.Args[1]
	} else {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			fmt.Printf("Failed to read password: %v\n", err)
			os.Exit(1)
		}
		password = strings.TrimRight(line, "\r\n")
	}
	if password == "" {
		fmt.Println("Password must not be empty")
		os.Exit(1)
	}

	hash, err := usecase.HashPassword(password)
	if err != nil {
		fmt.Printf("Failed to hash password: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(hash)
}
