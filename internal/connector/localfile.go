package connector

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/beacon-project/beacon/internal/config"
)

// defaultPriority places entries without an explicit priority after every
// prioritized entry.
const defaultPriority = math.MaxInt32

// localListDocument mirrors the local server list JSON file.
type localListDocument struct {
	Enabled bool             `json:"enabled"`
	Servers []localListEntry `json:"servers"`
}

type localListEntry struct {
	Address  string `json:"address"`
	Name     string `json:"name,omitempty"`
	Priority *int   `json:"priority,omitempty"`
}

// LocalListSource reads the operator-maintained server list file. An
// absent, unreadable, or disabled file yields zero servers.
type LocalListSource struct {
	cfg *config.Config
}

// NewLocalListSource creates a local list source.
func NewLocalListSource(cfg *config.Config) *LocalListSource {
	return &LocalListSource{cfg: cfg}
}

// FetchAddresses returns the local list addresses sorted ascending by
// priority. Entries without a priority sort last; ties keep file order.
// The context parameter exists to satisfy the cache's source signature;
// the read itself is local and fast.
func (s *LocalListSource) FetchAddresses(ctx context.Context) []string {
	path := s.cfg.GetBrowserData().LocalListPath
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", path).Msg("failed to read local server list")
		}
		return nil
	}

	var doc localListDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("failed to parse local server list")
		return nil
	}

	if !doc.Enabled {
		log.Debug().Str("path", path).Msg("local server list is disabled")
		return nil
	}

	sort.SliceStable(doc.Servers, func(i, j int) bool {
		return priorityOf(doc.Servers[i]) < priorityOf(doc.Servers[j])
	})

	addrs := make([]string, 0, len(doc.Servers))
	for _, e := range doc.Servers {
		if e.Address != "" {
			addrs = append(addrs, e.Address)
		}
	}

	log.Debug().Int("count", len(addrs)).Str("path", path).Msg("local server list loaded")
	return addrs
}

func priorityOf(e localListEntry) int {
	if e.Priority == nil {
		return defaultPriority
	}
	return *e.Priority
}
