package sec

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

var (
	unsafeCharRe = regexp.MustCompile(`[^A-Za-z0-9._-]`)

	// Patterns that recover the filer identity from SEC URLs, so cache
	// entries can be partitioned per company.
	cikPathRe = regexp.MustCompile(`/edgar/data/(\d+)/`)
	cikFileRe = regexp.MustCompile(`CIK(\d{10})\.json`)
)

// cachePath maps a URL to its on-disk cache location. Non-alphanumeric
// characters are replaced, and entries for URLs that encode a filer identity
// land in a per-CIK subdirectory so one company's cache can be cleared or
// sized without a full wipe.
func (c *Client) cachePath(url string) string {
	safe := unsafeCharRe.ReplaceAllString(url, "_")
	if cik := cikFromURL(url); cik != "" {
		return filepath.Join(c.cacheDir, cik, safe)
	}
	return filepath.Join(c.cacheDir, safe)
}

func cikFromURL(url string) string {
	if m := cikPathRe.FindStringSubmatch(url); m != nil {
		return padCIK(m[1])
	}
	if m := cikFileRe.FindStringSubmatch(url); m != nil {
		return padCIK(m[1])
	}
	return ""
}

func padCIK(cik string) string {
	trimmed := stripLeadingZeros(cik)
	if len(trimmed) >= 10 {
		return trimmed
	}
	return strings.Repeat("0", 10-len(trimmed)) + trimmed
}

// ClearCompanyCache removes all cached artifacts for one filer.
func (c *Client) ClearCompanyCache(cik string) error {
	if cik == "" {
		return fmt.Errorf("sec: clear company cache: empty CIK")
	}
	dir := filepath.Join(c.cacheDir, padCIK(cik))
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("sec: clear company cache %s: %w", dir, err)
	}
	return nil
}

// PruneCache evicts cache entries. Files older than maxAgeDays go first;
// if the remaining total still exceeds maxTotalGB, the oldest files by
// modification time are removed until the cache is under budget.
func (c *Client) PruneCache(maxAgeDays int, maxTotalGB float64) error {
	return PruneDir(c.cacheDir, maxAgeDays, maxTotalGB)
}

type cacheEntry struct {
	path    string
	size    int64
	modTime time.Time
}

// PruneDir applies the age-then-size eviction policy to a cache directory.
func PruneDir(dir string, maxAgeDays int, maxTotalGB float64) error {
	cutoff := time.Now().Add(-time.Duration(maxAgeDays) * 24 * time.Hour)
	maxTotalBytes := int64(maxTotalGB * float64(1<<30))

	var entries []cacheEntry
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		entries = append(entries, cacheEntry{path: path, size: info.Size(), modTime: info.ModTime()})
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("sec: walk cache dir %s: %w", dir, err)
	}

	var kept []cacheEntry
	var total int64
	for _, e := range entries {
		if e.modTime.Before(cutoff) {
			if err := os.Remove(e.path); err != nil {
				return fmt.Errorf("sec: prune cache entry %s: %w", e.path, err)
			}
			continue
		}
		kept = append(kept, e)
		total += e.size
	}

	if total <= maxTotalBytes {
		return nil
	}

	sort.Slice(kept, func(i, j int) bool { return kept[i].modTime.Before(kept[j].modTime) })
	for _, e := range kept {
		if total <= maxTotalBytes {
			break
		}
		if err := os.Remove(e.path); err != nil {
			return fmt.Errorf("sec: prune cache entry %s: %w", e.path, err)
		}
		total -= e.size
	}

	return nil
}
