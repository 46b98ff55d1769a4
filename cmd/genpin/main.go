package main

import (
	"fmt"
	"os"

	"golang.org/x/crypto/bcrypt"
)

// Prints the bcrypt hash for the given PIN, for the ACCESS_PIN_BCRYPT env var.
func main() {
	pin := "2580"
	if len(os.Args) > 1 {
		pin = os.Args[1]
	}
	h, err := bcrypt.GenerateFromPassword([]byte(pin), 12)
	if err != nil {
		panic(err)
	}
	fmt.Println(string(h))
}
