package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// ErrNoRoutes is returned when a route file yields no usable route
var ErrNoRoutes = errors.New("no routes configured")

// routeLine matches "<source> -> <destination>"; the arrow may carry extra '>'
var routeLine = regexp.MustCompile(`^\s*(\d+)\s*->+\s*(\d+)\s*$`)

// Route maps one local source port to an ordered list of candidate destinations
type Route struct {
	Source       uint16
	Destinations []uint16
}

// Clone returns a copy that shares no memory with r
func (r Route) Clone() Route {
	return Route{
		Source:       r.Source,
		Destinations: append([]uint16(nil), r.Destinations...),
	}
}

// String renders the route as ":8080 -> :3000, :3001"
func (r Route) String() string {
	dests := make([]string, len(r.Destinations))
	for i, d := range r.Destinations {
		dests[i] = fmt.Sprintf(":%d", d)
	}
	return fmt.Sprintf(":%d -> %s", r.Source, strings.Join(dests, ", "))
}

// Table is the ordered set of routes, in order of first appearance in the file.
// Source ports are unique within a Table.
type Table []Route

// Lookup returns the route for a source port
func (t Table) Lookup(source uint16) (Route, bool) {
	for _, r := range t {
		if r.Source == source {
			return r, true
		}
	}
	return Route{}, false
}

// Clone returns a deep copy of the table
func (t Table) Clone() Table {
	out := make(Table, len(t))
	for i, r := range t {
		out[i] = r.Clone()
	}
	return out
}

// ParseRoutes reads route lines from r. Malformed lines are skipped.
// Lines that repeat a source port append their destination to that route.
// Lines have no length limit.
func ParseRoutes(r io.Reader) (Table, error) {
	var table Table
	index := make(map[uint16]int)

	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to read routes: %w", err)
		}

		if source, dest, ok := parseRouteLine(line); ok {
			if i, seen := index[source]; seen {
				table[i].Destinations = append(table[i].Destinations, dest)
			} else {
				index[source] = len(table)
				table = append(table, Route{Source: source, Destinations: []uint16{dest}})
			}
		}

		if err != nil {
			return table, nil
		}
	}
}

// LoadRoutes reads and parses the route file at path
func LoadRoutes(path string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open route file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	table, err := ParseRoutes(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(table) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrNoRoutes)
	}

	return table, nil
}

func parseRouteLine(line string) (source, dest uint16, ok bool) {
	m := routeLine.FindStringSubmatch(line)
	if m == nil {
		return 0, 0, false
	}

	source, ok = parsePort(m[1])
	if !ok {
		return 0, 0, false
	}
	dest, ok = parsePort(m[2])
	if !ok {
		return 0, 0, false
	}

	return source, dest, true
}

// parsePort accepts 1-65535
func parsePort(s string) (uint16, bool) {
	n, err := strconv.ParseUint(s, 10, 16)
	if err != nil || n == 0 {
		return 0, false
	}
	return uint16(n), true
}
