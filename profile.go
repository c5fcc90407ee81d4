// profile.go: profile directory resolution and the ProfD directory provider
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goxpcom

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/mitchellh/go-homedir"
)

// PropertyProfileDirectory is the directory service key of the user profile.
const PropertyProfileDirectory = "ProfD"

// DefaultProfileAppName names the per-application folder of default profiles.
const DefaultProfileAppName = "go-xpcom"

// ProfileLocator finds the runtime profile directory.
//
// An explicit Directory must already exist. Otherwise the profile lives in
// <Root>/<AppName>/<version key>/DefaultProfile and is created on demand,
// where the version key is the runtime version without its last field in
// hex (1.9.2.13 gives "10902"). Root defaults to LocalAppDataDir.
type ProfileLocator struct {
	Directory string `json:"directory,omitempty" yaml:"directory,omitempty"`
	AppName   string `json:"app_name,omitempty" yaml:"app_name,omitempty"`
	Root      string `json:"root,omitempty" yaml:"root,omitempty"`
}

// Validate checks an explicit directory.
func (p ProfileLocator) Validate() error {
	if p.Directory == "" {
		return nil
	}
	info, err := os.Stat(p.Directory)
	if err != nil {
		return NewProfileError(p.Directory, "directory not found", err)
	}
	if !info.IsDir() {
		return NewProfileError(p.Directory, "not a directory", nil)
	}
	return nil
}

// Resolve returns the profile directory for version, creating the default
// directory when absent.
func (p ProfileLocator) Resolve(version RuntimeVersion) (string, error) {
	if p.Directory != "" {
		if err := p.Validate(); err != nil {
			return "", err
		}
		return filepath.Clean(p.Directory), nil
	}

	root := p.Root
	if root == "" {
		var err error
		if root, err = LocalAppDataDir(); err != nil {
			return "", err
		}
	}
	appName := p.AppName
	if appName == "" {
		appName = DefaultProfileAppName
	}

	dir := filepath.Join(root, appName, ProfileVersionKey(version), "DefaultProfile")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", NewProfileError(dir, "cannot create default profile", err)
	}
	return dir, nil
}

// ProfileVersionKey names the profile folder of a runtime version.
func ProfileVersionKey(version RuntimeVersion) string {
	return fmt.Sprintf("%X", uint32(version)>>8)
}

// LocalAppDataDir returns the per-user local application data root:
// %LOCALAPPDATA% on Windows, $XDG_DATA_HOME or ~/.local/share elsewhere.
func LocalAppDataDir() (string, error) {
	if runtime.GOOS == "windows" {
		if dir := os.Getenv("LOCALAPPDATA"); dir != "" {
			return dir, nil
		}
	} else if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return dir, nil
	}

	home, err := homedir.Dir()
	if err != nil {
		return "", NewProfileError("", "cannot determine home directory", err)
	}
	if runtime.GOOS == "windows" {
		return filepath.Join(home, "AppData", "Local"), nil
	}
	return filepath.Join(home, ".local", "share"), nil
}

// profileProvider serves ProfD to the runtime directory service.
//
// The directory is resolved on each request, so a locator change between
// runs of the same Runtime takes effect.
type profileProvider struct {
	rt *Runtime
}

func (p *profileProvider) GetFile(property string) (Unknown, bool, Result) {
	if property != PropertyProfileDirectory {
		return nil, false, ResultFailure
	}

	logger := p.rt.logger
	dir, err := p.rt.ProfileDirectory()
	if err != nil {
		logger.Error("Profile directory unavailable", "error", err)
		return nil, false, ResultFileNotFound
	}

	file, rc := p.rt.engine.NewNativeLocalFile(dir, true)
	if rc.Failed() || file == nil {
		logger.Error("Profile file object not created", "path", dir, "result", rc.String())
		return nil, false, ResultFailure
	}
	logger.Debug("Profile directory served", "path", dir)
	return file, false, ResultOK
}
