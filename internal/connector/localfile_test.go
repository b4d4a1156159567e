package connector

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/beacon-project/beacon/internal/config"
)

func sourceWithFile(t *testing.T, content string) *LocalListSource {
	t.Helper()
	path := filepath.Join(t.TempDir(), "servers.json")
	if content != "" {
		assert.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	cfg := config.DefaultConfig()
	data := cfg.GetBrowserData()
	data.LocalListPath = path
	cfg.SetBrowserData(data)
	return NewLocalListSource(cfg)
}

func TestLocalListPrioritySort(t *testing.T) {
	s := sourceWithFile(t, `{
		"enabled": true,
		"servers": [
			{"address": "3.3.3.3:27015", "name": "no priority"},
			{"address": "1.1.1.1:27015", "priority": 1},
			{"address": "2.2.2.2:27015", "priority": 2},
			{"address": "4.4.4.4:27015", "name": "also no priority"}
		]
	}`)

	addrs := s.FetchAddresses(context.Background())
	assert.Equal(t, []string{
		"1.1.1.1:27015",
		"2.2.2.2:27015",
		"3.3.3.3:27015",
		"4.4.4.4:27015",
	}, addrs)
}

func TestLocalListDisabled(t *testing.T) {
	s := sourceWithFile(t, `{"enabled": false, "servers": [{"address": "1.1.1.1:27015"}]}`)
	assert.Empty(t, s.FetchAddresses(context.Background()))
}

func TestLocalListMissingFile(t *testing.T) {
	s := sourceWithFile(t, "")
	assert.Empty(t, s.FetchAddresses(context.Background()))
}

func TestLocalListMalformed(t *testing.T) {
	s := sourceWithFile(t, `{"enabled": true, "servers": [`)
	assert.Empty(t, s.FetchAddresses(context.Background()))
}
