// Command ratelmq-passwd manages the username:hash password file consumed
// by the broker's file-backed identity provider.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/ratelmq/ratelmq/internal/auth"
)

func main() {
	fileFlag := flag.String("file", "/etc/ratelmq/passwords", "password file to modify")
	flag.Parse()

	args := flag.Args()
	if len(args) < 2 {
		usage()
		os.Exit(2)
	}

	command, user := args[0], args[1]

	var err error
	switch command {
	case "add":
		err = add(*fileFlag, user)
	case "remove":
		err = remove(*fileFlag, user)
	case "verify":
		err = verify(*fileFlag, user)
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "ratelmq-passwd:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: ratelmq-passwd [-file PASSWD_FILE] <add|remove|verify> <user>")
}

func add(path, user string) error {
	password, err := readPassword("New password: ")
	if err != nil {
		return err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	entries, err := readEntries(path)
	if err != nil {
		return err
	}
	entries[user] = hash

	return writeEntries(path, entries)
}

func remove(path, user string) error {
	entries, err := readEntries(path)
	if err != nil {
		return err
	}
	if _, ok := entries[user]; !ok {
		return fmt.Errorf("user %q not found in %s", user, path)
	}
	delete(entries, user)

	return writeEntries(path, entries)
}

func verify(path, user string) error {
	mgr, err := auth.NewFileIdentityManager(path)
	if err != nil {
		return err
	}

	password, err := readPassword("Password: ")
	if err != nil {
		return err
	}

	if err := mgr.Authenticate(user, password); err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	fmt.Println("ok")
	return nil
}

func readPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// readEntries loads the existing username->hash file, tolerating a
// not-yet-created file so "add" can bootstrap one from scratch.
func readEntries(path string) (map[string]string, error) {
	entries := make(map[string]string)

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return entries, nil
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		name, hash, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("malformed entry in %s: %q", path, line)
		}
		entries[name] = hash
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	return entries, nil
}

func writeEntries(path string, entries map[string]string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for user, hash := range entries {
		if _, err := fmt.Fprintf(w, "%s:%s\n", user, hash); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	return w.Flush()
}
