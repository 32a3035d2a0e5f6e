package main

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"strings"

	"github.com/Gaurav-Gosain/newterm/internal/config"
)

func printConfigPath() error {
	path, err := config.ConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}
	fmt.Println(path)
	return nil
}

// findEditor returns the user's editor: $EDITOR, $VISUAL, then the first
// common editor on PATH.
func findEditor() (string, error) {
	for _, env := range []string{"EDITOR", "VISUAL"} {
		if e := strings.TrimSpace(os.Getenv(env)); e != "" {
			return e, nil
		}
	}
	for _, e := range []string{"vim", "vi", "nano"} {
		if _, err := exec.LookPath(e); err == nil {
			return e, nil
		}
	}
	return "", errors.New("no editor found: set $EDITOR")
}

func editConfigFile() error {
	path, err := config.ConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if _, err := config.CreateDefault(path); err != nil {
			return fmt.Errorf("failed to create config: %w", err)
		}
	}

	editor, err := findEditor()
	if err != nil {
		return err
	}

	// $EDITOR may carry flags, e.g. "code --wait".
	fields := strings.Fields(editor)
	// #nosec G204 - the editor is chosen by the user
	cmd := exec.Command(fields[0], append(fields[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("editor %s failed: %w", fields[0], err)
	}

	if _, result, err := config.Load(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		if result != nil {
			for _, issue := range result.Errors {
				fmt.Fprintf(os.Stderr, "  %s\n", issue)
			}
		}
	} else if result.HasWarnings() {
		for _, issue := range result.Warnings {
			fmt.Fprintf(os.Stderr, "Warning: %s\n", issue)
		}
	}
	return nil
}

func resetConfigToDefaults(skipConfirm bool) error {
	if !skipConfirm {
		path, err := config.ConfigPath()
		if err != nil {
			return fmt.Errorf("failed to get config path: %w", err)
		}
		fmt.Printf("This will overwrite %s with the defaults. Continue? [y/N] ", path)
		answer, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		switch strings.ToLower(strings.TrimSpace(answer)) {
		case "y", "yes":
		default:
			fmt.Println("Aborted.")
			return nil
		}
	}

	path, err := config.Reset()
	if err != nil {
		return fmt.Errorf("failed to reset config: %w", err)
	}
	fmt.Printf("Configuration reset: %s\n", path)
	return nil
}
