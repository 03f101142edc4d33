package spl

import "unicode/utf8"

// Config carries one invocation's settings from the command line to the
// create and fix operations.
type Config struct {
	path string

	// Version and BackupOffset override the header defaults when non-zero.
	Version      uint32
	BackupOffset uint32

	CreateHeader   bool
	FixImageHeader bool
}

func NewConfig() *Config {
	return &Config{path: DefSPLFile}
}

func (c *Config) Path() string { return c.path }

// SetPath stores p, cut to at most PathMax-1 bytes on a rune boundary.
func (c *Config) SetPath(p string) {
	if len(p) >= PathMax {
		n := PathMax - 1
		for n > 0 && !utf8.RuneStart(p[n]) {
			n--
		}
		p = p[:n]
	}
	c.path = p
}

// Options returns the header overrides held in c.
func (c *Config) Options() Options {
	return Options{Version: c.Version, BackupOffset: c.BackupOffset}
}
