package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"github.com/iammatthias/mysky.wtf/internal/bluesky"
	"github.com/iammatthias/mysky.wtf/internal/constellation"
	"github.com/iammatthias/mysky.wtf/internal/domain"
	"github.com/iammatthias/mysky.wtf/internal/identity"
	"github.com/iammatthias/mysky.wtf/internal/pds"
)

var errNotLoggedIn = errors.New("not logged in: run `mysky login` first")

func newResolver() *identity.Resolver {
	return identity.NewResolver(viper.GetString("plc"), logger)
}

func newService() *domain.Service {
	reader := pds.NewReader(newResolver(), logger)
	links := constellation.NewClient(viper.GetString("constellation"), logger)
	return domain.NewService(reader, links, logger, domain.WithSiteURL(viper.GetString("site")))
}

// storedSession reads the session saved by `mysky login`.
func storedSession() (bluesky.Session, bool) {
	s := bluesky.Session{
		DID:        viper.GetString("session.did"),
		Handle:     viper.GetString("session.handle"),
		AccessJwt:  viper.GetString("session.access_jwt"),
		RefreshJwt: viper.GetString("session.refresh_jwt"),
		PDS:        viper.GetString("session.pds"),
	}
	return s, s.DID != "" && s.AccessJwt != ""
}

func saveSession(s *bluesky.Session) error {
	viper.Set("session.did", s.DID)
	viper.Set("session.handle", s.Handle)
	viper.Set("session.access_jwt", s.AccessJwt)
	viper.Set("session.refresh_jwt", s.RefreshJwt)
	viper.Set("session.pds", s.PDS)
	return writeConfig()
}

func clearSession() error {
	for _, key := range []string{"session.did", "session.handle", "session.access_jwt", "session.refresh_jwt", "session.pds"} {
		viper.Set(key, "")
	}
	return writeConfig()
}

func writeConfig() error {
	path := viper.ConfigFileUsed()
	if path == "" {
		home, err := homedir.Dir()
		if err != nil {
			return fmt.Errorf("find home directory: %w", err)
		}
		path = filepath.Join(home, configName)
	}
	if err := viper.WriteConfigAs(path); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	return os.Chmod(path, 0o600)
}

// agent returns a client for the saved session. Tokens rotated by a refresh
// are written back to the config file.
func agent() (*bluesky.Client, error) {
	s, ok := storedSession()
	if !ok {
		return nil, errNotLoggedIn
	}
	client := bluesky.Resume(s)
	client.OnRefresh(func(_ context.Context, refreshed bluesky.Session) {
		if err := saveSession(&refreshed); err != nil {
			logger.Error("failed to save refreshed session", "error", err)
		}
	})
	return client, nil
}

// targetDID returns the first argument, or the signed-in DID without one.
func targetDID(args []string) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}
	s, ok := storedSession()
	if !ok {
		return "", errNotLoggedIn
	}
	return s.DID, nil
}

// textFrom joins args, or reads r when there are none.
func textFrom(args []string, r io.Reader) (string, error) {
	text := strings.Join(args, " ")
	if text == "" {
		data, err := io.ReadAll(r)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		text = string(data)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("no text provided")
	}
	return text, nil
}

// warnDegraded logs read errors that still produced a usable result.
func warnDegraded(err error) {
	if err != nil {
		logger.Warn("some sources could not be reached; results may be incomplete", "error", err)
	}
}
