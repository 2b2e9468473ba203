// Package setup bootstraps a glassfile installation: it prompts for the
// admin password, mints an API key, and writes the initial config file.
package setup

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/miikkis-gh/glassfile/internal/auth"
	"github.com/miikkis-gh/glassfile/internal/config"
)

type Options struct {
	ConfigPath string
	StorageDir string
	Bind       string
	Port       int
}

func Run(opt Options) error {
	if opt.ConfigPath == "" {
		return errors.New("config path is required")
	}
	if _, err := os.Stat(opt.ConfigPath); err == nil {
		return fmt.Errorf("%s already exists; remove it to re-run setup", opt.ConfigPath)
	} else if !os.IsNotExist(err) {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(opt.ConfigPath), 0o700); err != nil {
		return err
	}

	adminPass, err := promptPassword("Set admin password")
	if err != nil {
		return err
	}
	adminHash, err := auth.HashPassword(adminPass, auth.DefaultArgon2Params())
	if err != nil {
		return err
	}
	apiKey, err := auth.NewToken(32)
	if err != nil {
		return err
	}

	var c config.Config
	c.Log.Level = "info"
	c.Server.Bind = opt.Bind
	c.Server.Port = opt.Port
	c.Storage.Directory = opt.StorageDir
	c.Storage.MaxFileSizeMB = 100
	c.Security.AdminPasswordHash = adminHash
	c.Security.APIKeys = []string{apiKey}
	c.Security.SessionLifetimeSeconds = 3600
	c.Security.LoginAttemptsPerMinute = 10

	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if err := os.WriteFile(opt.ConfigPath, b, 0o600); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "wrote %s\n", opt.ConfigPath)
	// The key is shown once; afterwards it only exists in the config.
	fmt.Fprintf(os.Stdout, "API key: %s\n", apiKey)
	return nil
}

func promptPassword(label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		for {
			fmt.Fprintf(os.Stderr, "%s: ", label)
			p1b, err := term.ReadPassword(fd)
			fmt.Fprintln(os.Stderr)
			if err != nil {
				return "", err
			}
			fmt.Fprint(os.Stderr, "Confirm password: ")
			p2b, err := term.ReadPassword(fd)
			fmt.Fprintln(os.Stderr)
			if err != nil {
				return "", err
			}
			p1 := strings.TrimSpace(string(p1b))
			p2 := strings.TrimSpace(string(p2b))
			if p1 == "" {
				fmt.Fprintln(os.Stderr, "password cannot be empty")
				continue
			}
			if p1 != p2 {
				fmt.Fprintln(os.Stderr, "passwords do not match")
				continue
			}
			return p1, nil
		}
	}

	// Non-interactive fallback (e.g. piped input). Echo suppression isn't possible.
	r := bufio.NewReader(os.Stdin)
	for {
		fmt.Fprintf(os.Stderr, "%s: ", label)
		p1, err := r.ReadString('\n')
		if err != nil {
			return "", err
		}
		fmt.Fprint(os.Stderr, "Confirm password: ")
		p2, err := r.ReadString('\n')
		if err != nil {
			return "", err
		}
		p1 = strings.TrimSpace(p1)
		p2 = strings.TrimSpace(p2)
		if p1 == "" {
			fmt.Fprintln(os.Stderr, "password cannot be empty")
			continue
		}
		if p1 != p2 {
			fmt.Fprintln(os.Stderr, "passwords do not match")
			continue
		}
		return p1, nil
	}
}
