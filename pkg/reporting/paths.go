package reporting

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultPathManager implements PathManager.
type DefaultPathManager struct{}

func NewDefaultPathManager() *DefaultPathManager {
	return &DefaultPathManager{}
}

// GetDefaultOutputDir returns root/SYMBOL_interval, defaulting root to "results".
func (p *DefaultPathManager) GetDefaultOutputDir(root, symbol, interval string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	i := strings.ToLower(strings.TrimSpace(interval))
	if s == "" {
		s = "UNKNOWN"
	}
	if i == "" {
		i = "unknown"
	}
	if root == "" {
		root = "results"
	}
	return filepath.Join(root, fmt.Sprintf("%s_%s", s, i))
}

// EnsureDirectoryExists creates the parent directory of path.
func (p *DefaultPathManager) EnsureDirectoryExists(path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		return os.MkdirAll(dir, 0o755)
	}
	return nil
}

func DefaultOutputDir(root, symbol, interval string) string {
	return NewDefaultPathManager().GetDefaultOutputDir(root, symbol, interval)
}

// ExtractIntervalFromPath finds an interval segment in a data path, for
// example "data/bybit/linear/PEPEUSDT/5m/candles.csv" gives "5m". Bare minute
// directories such as ".../60/candles.csv" give "60m".
func ExtractIntervalFromPath(dataPath string) string {
	if dataPath == "" {
		return ""
	}
	parts := strings.Split(filepath.ToSlash(dataPath), "/")
	for i := len(parts) - 1; i >= 0; i-- {
		part := parts[i]
		if len(part) >= 2 {
			switch part[len(part)-1] {
			case 'm', 'h', 'd':
				if _, err := strconv.Atoi(part[:len(part)-1]); err == nil {
					return part
				}
			}
		}
		if i == len(parts)-2 {
			if _, err := strconv.Atoi(part); err == nil {
				return part + "m"
			}
		}
	}
	return ""
}
