package names

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrInvalidName is returned for syntactically invalid names (spec §7).
var ErrInvalidName = errors.New("names: invalid name")

var labelPattern = regexp.MustCompile(`^[A-Za-z0-9-]{1,63}$`)

// computerFormPattern matches "<subdomain>.comp<node_id>.rednet".
var computerFormPattern = regexp.MustCompile(`^([A-Za-z0-9-]{1,63})\.comp([0-9]+)\.rednet$`)

// ValidateLabel checks a single DNS label against spec §3: ASCII
// letters/digits/hyphen, must not start or end with hyphen, length 1..63,
// and must not be a reserved word.
func ValidateLabel(label string) error {
	if !labelPattern.MatchString(label) {
		return fmt.Errorf("label %q: invalid characters or length: %w", label, ErrInvalidName)
	}
	if strings.HasPrefix(label, "-") || strings.HasSuffix(label, "-") {
		return fmt.Errorf("label %q: must not start or end with hyphen: %w", label, ErrInvalidName)
	}
	if reservedWords[strings.ToLower(label)] {
		return fmt.Errorf("label %q: reserved word: %w", label, ErrInvalidName)
	}
	return nil
}

// ParseName parses a raw name string into its {kind, ...} form (spec §4.4
// step 1: "Parse"). Invalid syntax returns ErrInvalidName.
func ParseName(raw string) (Name, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return Name{}, fmt.Errorf("empty name: %w", ErrInvalidName)
	}

	if m := computerFormPattern.FindStringSubmatch(raw); m != nil {
		subdomain := m[1]
		nodeID, err := strconv.Atoi(m[2])
		if err != nil {
			return Name{}, fmt.Errorf("node id %q: %w", m[2], ErrInvalidName)
		}
		if err := ValidateLabel(subdomain); err != nil {
			return Name{}, err
		}
		return Name{Kind: KindComputer, Subdomain: subdomain, NodeID: nodeID, Raw: raw}, nil
	}

	// Alias form: a single label, no dots.
	if !strings.Contains(raw, ".") {
		if err := ValidateLabel(raw); err != nil {
			return Name{}, err
		}
		return Name{Kind: KindAlias, Alias: raw, Raw: raw}, nil
	}

	return Name{}, fmt.Errorf("name %q does not match computer or alias form: %w", raw, ErrInvalidName)
}

// ComputerName formats the canonical computer-form name for (subdomain, nodeID).
func ComputerName(subdomain string, nodeID int) string {
	return fmt.Sprintf("%s.comp%d.rednet", subdomain, nodeID)
}
