package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/go-ldap/ldap/v3"

	"github.com/qldap/ldap-vacation/internal/config"
	"github.com/qldap/ldap-vacation/internal/directory"
	"github.com/qldap/ldap-vacation/internal/logging"
	"github.com/qldap/ldap-vacation/internal/storage"
	"github.com/qldap/ldap-vacation/internal/vacation"
)

// Operator tool: validates the configuration, probes the directory, and
// optionally resolves one user's vacation record.
func main() {
	var (
		login string
		email string
	)
	flag.StringVar(&login, "login", "", "resolve this user's vacation record (optional)")
	flag.StringVar(&email, "email", "", "email for the %email filter placeholder (optional, defaults to -login)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewConsole(cfg.LogLevel)
	logger = logger.With().Str("component", "check").Logger()

	sess, err := directory.Open(cfg.LDAP, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "directory: %v\n", err)
		os.Exit(1)
	}

	// Base-DN probe: confirms the base exists and the bind may read it.
	probe := ldap.NewSearchRequest(
		cfg.LDAP.BaseDN,
		ldap.ScopeBaseObject, ldap.NeverDerefAliases, 0, cfg.LDAP.SearchTimeLimit, false,
		"(objectClass=*)",
		[]string{"1.1"},
		nil,
	)
	_, err = sess.Search(probe)
	sess.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "base DN probe failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("directory reachable, base DN %s ok\n", cfg.LDAP.BaseDN)

	if login == "" {
		return
	}
	if email == "" {
		email = login
	}

	svc := vacation.New(cfg.LDAP, logger, storage.NoopStore{})
	rec, err := svc.Load(context.Background(), directory.Identity{Login: login, Email: email})
	if err != nil {
		fmt.Fprintf(os.Stderr, "lookup failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("entry: %s\n", rec.DN)
	fmt.Printf("enabled: %t\n", rec.Enabled)
	fmt.Printf("reply text: %q\n", rec.ReplyText)
}
