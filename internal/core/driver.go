package core

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"regexp"
	"sort"
	"sync"

	"github.com/coregx/gravity/internal/cache"
	"github.com/coregx/gravity/internal/dialects"
)

// Driver adapts one database/sql driver family to the connection layer.
type Driver interface {
	// SQLDriverName returns the name the driver registered with database/sql.
	SQLDriverName() string
	// Dialect returns the SQL dialect of the family.
	Dialect() dialects.Dialect
	// DSN builds the data source name for one endpoint host.
	DSN(cfg *DatabaseConfig, host string) (string, error)
	// ErrorInfo extracts the server error number and message from err.
	// The number is 0 for errors not raised by the server.
	ErrorInfo(err error) (number int, message string)
	// ConnectErrorNumber is reported for connect failures without a server
	// error number.
	ConnectErrorNumber() int
	// Deadlock reports whether an error number is a deadlock.
	Deadlock(number int) bool
	// LockTimeout reports whether an error number is a lock wait timeout.
	LockTimeout(number int) bool
	// Broken reports whether err leaves the server connection unusable.
	Broken(err error) bool
}

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]Driver)
)

// RegisterDriver registers a driver family under a configuration tag.
// Registering the same tag twice replaces the earlier driver.
func RegisterDriver(tag string, d Driver) {
	driversMu.Lock()
	defer driversMu.Unlock()
	drivers[tag] = d
}

// LookupDriver returns the driver registered under tag.
func LookupDriver(tag string) (Driver, bool) {
	driversMu.RLock()
	defer driversMu.RUnlock()
	d, ok := drivers[tag]
	return d, ok
}

// Drivers returns the registered driver tags in sorted order.
func Drivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()
	tags := make([]string, 0, len(drivers))
	for tag := range drivers {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// brokenConnection covers the database/sql level signals shared by all drivers.
func brokenConnection(err error) bool {
	return errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone)
}

// regexpCacheCapacity bounds the compiled patterns kept for REGEXP.
const regexpCacheCapacity = 256

var patterns = cache.New[*regexp.Regexp](regexpCacheCapacity)

// matchRegexp implements the REGEXP function registered with the SQLite
// drivers. Compiled patterns are kept in an LRU cache.
func matchRegexp(pattern, value string) (bool, error) {
	re, ok := patterns.Get(pattern)
	if !ok {
		var err error
		if re, err = regexp.Compile(pattern); err != nil {
			return false, err
		}
		patterns.Set(pattern, re)
	}
	return re.MatchString(value), nil
}
