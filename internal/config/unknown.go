package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// maxLevenshteinDistance is the maximum edit distance for "did you mean?"
// suggestions when unknown config keys are detected.
const maxLevenshteinDistance = 3

// knownSectionKeys lists the valid keys of every config section.
var knownSectionKeys = map[string]map[string]bool{
	"google": {
		"client_id": true, "client_secret": true, "auth_url": true, "token_url": true,
		"userinfo_url": true, "picker_url": true, "scopes": true,
	},
	"telegram": {
		"bot_token": true, "api_url": true, "channel_id": true,
		"allowed_users": true, "caption_filenames": true,
	},
	"server": {
		"listen_addr": true, "public_base_url": true, "callback_path": true,
	},
	"transfer": {
		"photo_max_size": true, "file_max_size": true, "upload_pause": true,
		"progress_every": true, "max_wait": true, "delete_session": true,
		"workers": true, "queue_size": true, "token_margin": true,
		"http_timeout": true, "upload_timeout": true,
	},
	"logging": {"log_level": true, "log_format": true},
	"storage": {"data_dir": true},
}

// sortedKeys returns the keys of m in sorted order, for deterministic
// suggestions when two candidates have the same edit distance.
func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

// knownSectionsList is the sorted list of section names.
var knownSectionsList = func() []string {
	names := make(map[string]bool, len(knownSectionKeys))
	for k := range knownSectionKeys {
		names[k] = true
	}

	return sortedKeys(names)
}()

// checkUnknownKeys inspects TOML metadata for undecoded keys and returns
// an error with "did you mean?" suggestions for each unknown key.
func checkUnknownKeys(md *toml.MetaData) error {
	undecoded := md.Undecoded()
	if len(undecoded) == 0 {
		return nil
	}

	var errs []error

	for _, key := range undecoded {
		errs = append(errs, buildKeyError(key))
	}

	return errors.Join(errs...)
}

// buildKeyError creates a descriptive error for an unknown key, suggesting
// the closest known section or key.
func buildKeyError(key toml.Key) error {
	section := key[0]

	known, ok := knownSectionKeys[section]
	if !ok || len(key) < 2 {
		if suggestion := closestMatch(section, knownSectionsList); suggestion != "" {
			return fmt.Errorf("unknown config key %q; did you mean %q?", section, suggestion)
		}

		return fmt.Errorf("unknown config key %q", section)
	}

	field := strings.Join(key[1:], ".")
	if suggestion := closestMatch(field, sortedKeys(known)); suggestion != "" {
		return fmt.Errorf("unknown config key %q in [%s]; did you mean %q?", field, section, suggestion)
	}

	return fmt.Errorf("unknown config key %q in [%s]", field, section)
}

// closestMatch finds the closest known key by Levenshtein distance.
// Returns empty string if no match is within maxLevenshteinDistance.
func closestMatch(unknown string, known []string) string {
	best := ""
	bestDist := maxLevenshteinDistance + 1

	for _, k := range known {
		d := levenshtein(unknown, k)
		if d < bestDist {
			bestDist = d
			best = k
		}
	}

	if bestDist <= maxLevenshteinDistance {
		return best
	}

	return ""
}

// levenshtein computes the edit distance between two strings.
func levenshtein(a, b string) int {
	if a == "" {
		return len(b)
	}

	if b == "" {
		return len(a)
	}

	// Use single-row optimization to avoid allocating a full matrix.
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for j := range prev {
		prev[j] = j
	}

	for i := range len(a) {
		curr[0] = i + 1

		for j := range len(b) {
			cost := 1
			if a[i] == b[j] {
				cost = 0
			}

			curr[j+1] = minOf(curr[j]+1, prev[j+1]+1, prev[j]+cost)
		}

		prev, curr = curr, prev
	}

	return prev[len(b)]
}

// minOf returns the minimum of three integers.
func minOf(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}

	if c < m {
		m = c
	}

	return m
}
