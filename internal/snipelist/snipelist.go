// internal/snipelist/snipelist.go
package snipelist

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// List is a set of mints the bot is allowed to buy, read from a file with
// one mint per line. Blank lines and lines starting with # are ignored.
type List struct {
	path   string
	logger *zap.Logger
	cron   *cron.Cron

	mu    sync.RWMutex
	mints map[string]struct{}
}

// New loads path once. Call Start to keep it fresh.
func New(path string, logger *zap.Logger) (*List, error) {
	l := &List{
		path:   path,
		logger: logger.Named("snipe-list"),
		mints:  make(map[string]struct{}),
	}
	if err := l.Load(); err != nil {
		return nil, err
	}
	return l, nil
}

// Load rereads the file.
func (l *List) Load() error {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return fmt.Errorf("read snipe list: %w", err)
	}

	mints := make(map[string]struct{})
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		mints[line] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("parse snipe list: %w", err)
	}

	l.mu.Lock()
	changed := len(mints) != len(l.mints)
	l.mints = mints
	l.mu.Unlock()

	if changed {
		l.logger.Info("Loaded snipe list", zap.Int("mints", len(mints)))
	}
	return nil
}

// Contains reports whether mint is on the list.
func (l *List) Contains(mint string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.mints[mint]
	return ok
}

// Len returns the number of mints on the list.
func (l *List) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.mints)
}

// Start reloads the list on spec ("@every 30s", standard cron syntax).
func (l *List) Start(spec string) error {
	c := cron.New()
	if _, err := c.AddFunc(spec, func() {
		if err := l.Load(); err != nil {
			l.logger.Warn("Failed to refresh snipe list", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("schedule snipe list refresh: %w", err)
	}
	l.cron = c
	c.Start()
	return nil
}

// Stop halts refreshing and waits for a running reload.
func (l *List) Stop() {
	if l.cron == nil {
		return
	}
	<-l.cron.Stop().Done()
}
