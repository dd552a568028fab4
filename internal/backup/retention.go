package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Info describes an archive on disk for retention decisions.
type Info struct {
	Path      string    `json:"path"`
	Size      int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
	Batches   int       `json:"batches"`
	Runs      int       `json:"runs"`
}

// RetentionPolicy decides which archives to keep.
type RetentionPolicy interface {
	Apply(backups []Info) (keep []Info)
}

// CountPolicy keeps the N most recent archives.
type CountPolicy struct {
	MaxCount int
}

// Apply keeps the first MaxCount archives (assumed sorted newest-first).
func (p *CountPolicy) Apply(backups []Info) []Info {
	if len(backups) <= p.MaxCount {
		return backups
	}
	return backups[:p.MaxCount]
}

// AgePolicy keeps archives newer than MaxAge.
type AgePolicy struct {
	MaxAge time.Duration
	now    func() time.Time
}

func (p *AgePolicy) Apply(backups []Info) []Info {
	now := time.Now
	if p.now != nil {
		now = p.now
	}
	cutoff := now().Add(-p.MaxAge)
	var keep []Info
	for _, b := range backups {
		if b.CreatedAt.After(cutoff) {
			keep = append(keep, b)
		}
	}
	return keep
}

// SizePolicy keeps archives, newest first, until their total size exceeds
// MaxTotalBytes. The newest archive is always kept.
type SizePolicy struct {
	MaxTotalBytes int64
}

func (p *SizePolicy) Apply(backups []Info) []Info {
	var keep []Info
	var total int64
	for _, b := range backups {
		if total+b.Size > p.MaxTotalBytes && len(keep) > 0 {
			break
		}
		keep = append(keep, b)
		total += b.Size
	}
	return keep
}

// CompositePolicy keeps an archive if any sub-policy keeps it.
type CompositePolicy struct {
	Policies []RetentionPolicy
}

func (p *CompositePolicy) Apply(backups []Info) []Info {
	kept := make(map[string]bool)
	for _, policy := range p.Policies {
		for _, b := range policy.Apply(backups) {
			kept[b.Path] = true
		}
	}

	var result []Info
	for _, b := range backups {
		if kept[b.Path] {
			result = append(result, b)
		}
	}
	return result
}

// NewPolicy builds a policy from the retention settings. Zero or empty
// settings are ignored; nil means keep everything.
func NewPolicy(keep int, maxAge, maxTotalSize string) (RetentionPolicy, error) {
	var policies []RetentionPolicy
	if keep > 0 {
		policies = append(policies, &CountPolicy{MaxCount: keep})
	}
	if maxAge != "" {
		d, err := ParseDuration(maxAge)
		if err != nil {
			return nil, err
		}
		policies = append(policies, &AgePolicy{MaxAge: d})
	}
	if maxTotalSize != "" {
		n, err := ParseSize(maxTotalSize)
		if err != nil {
			return nil, err
		}
		policies = append(policies, &SizePolicy{MaxTotalBytes: n})
	}

	switch len(policies) {
	case 0:
		return nil, nil
	case 1:
		return policies[0], nil
	default:
		return &CompositePolicy{Policies: policies}, nil
	}
}

func isBackupFile(name string) bool {
	return strings.HasPrefix(name, FilePrefix) && strings.HasSuffix(name, FileExt)
}

// ListBackups scans dir for archives and returns them newest first. A missing
// directory yields no archives.
func ListBackups(dir string) ([]Info, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading backup directory: %w", err)
	}

	var backups []Info
	for _, e := range entries {
		if e.IsDir() || !isBackupFile(e.Name()) {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}

		info := Info{
			Path:      filepath.Join(dir, e.Name()),
			Size:      fi.Size(),
			CreatedAt: fi.ModTime(),
		}
		if h, err := ReadHeader(info.Path); err == nil {
			info.CreatedAt = h.CreatedAt
			info.Batches = h.BatchCount
			info.Runs = h.RunCount
		}
		backups = append(backups, info)
	}

	// The timestamp is embedded in the name.
	sort.Slice(backups, func(i, j int) bool {
		return filepath.Base(backups[i].Path) > filepath.Base(backups[j].Path)
	})
	return backups, nil
}

// ApplyRetention deletes the archives in dir that policy does not keep.
func ApplyRetention(dir string, policy RetentionPolicy) (deleted []string, err error) {
	backups, err := ListBackups(dir)
	if err != nil {
		return nil, err
	}

	keepSet := make(map[string]bool)
	for _, b := range policy.Apply(backups) {
		keepSet[b.Path] = true
	}

	for _, b := range backups {
		if keepSet[b.Path] {
			continue
		}
		if err := os.Remove(b.Path); err != nil {
			return deleted, fmt.Errorf("removing %s: %w", filepath.Base(b.Path), err)
		}
		deleted = append(deleted, b.Path)
	}
	return deleted, nil
}

// ParseDuration parses durations like "30d", "2w" or "720h".
func ParseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("empty duration string")
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	if len(s) < 2 {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}

	suffix := s[len(s)-1]
	num, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || num < 0 {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}

	switch suffix {
	case 'd':
		return time.Duration(num) * 24 * time.Hour, nil
	case 'w':
		return time.Duration(num) * 7 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unknown duration suffix %q in %q", string(suffix), s)
	}
}

// ParseSize parses sizes like "100MB", "1GB" or "500KB" into bytes.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty size string")
	}

	// Longer suffixes first so "MB" does not match "B".
	suffixes := []struct {
		suffix     string
		multiplier int64
	}{
		{"GB", 1 << 30},
		{"MB", 1 << 20},
		{"KB", 1 << 10},
		{"B", 1},
	}
	for _, ss := range suffixes {
		if strings.HasSuffix(s, ss.suffix) {
			num, err := strconv.ParseInt(strings.TrimSuffix(s, ss.suffix), 10, 64)
			if err != nil || num < 0 {
				return 0, fmt.Errorf("invalid size: %q", s)
			}
			return num * ss.multiplier, nil
		}
	}
	return 0, fmt.Errorf("invalid size: %q (expected suffix: B, KB, MB, GB)", s)
}
