// Package version implements the Debian version comparison algorithm as
// defined in Debian Policy §5.6.12 (the dpkg --compare-versions ordering).
//
// A version string has the form [epoch:]upstream_version[-debian_revision].
// Only the last hyphen separates the revision; only the first colon
// separates the epoch.
package version

import "strconv"

// Version is a version string split into its three comparison components.
type Version struct {
	Epoch    uint
	Upstream string
	Revision string
}

// Parse splits s into epoch, upstream version and Debian revision. It
// performs no validation beyond requiring a numeric epoch: archive indices
// occasionally carry versions that violate the policy character set, and
// sorting them is more useful than rejecting them.
func Parse(s string) (Version, error) {
	var v Version
	rest := s
	for i := 0; i < len(rest); i++ {
		if rest[i] == ':' {
			epoch, err := strconv.ParseUint(rest[:i], 10, 32)
			if err != nil {
				return Version{}, err
			}
			v.Epoch = uint(epoch)
			rest = rest[i+1:]
			break
		}
	}
	v.Upstream = rest
	for i := len(rest) - 1; i >= 0; i-- {
		if rest[i] == '-' {
			v.Upstream = rest[:i]
			v.Revision = rest[i+1:]
			break
		}
	}
	return v, nil
}

// String reassembles the version. Zero epochs and empty revisions are
// omitted, matching the canonical archive representation.
func (v Version) String() string {
	s := v.Upstream
	if v.Epoch > 0 {
		s = strconv.FormatUint(uint64(v.Epoch), 10) + ":" + s
	}
	if v.Revision != "" {
		s = s + "-" + v.Revision
	}
	return s
}

// Compare returns a value <0 if a sorts before b, 0 if they are equal and
// >0 if a sorts after b. Strings that fail to parse (non-numeric epoch)
// compare as if the bad epoch were part of the upstream version, keeping
// the relation total.
func Compare(a, b string) int {
	va, erra := Parse(a)
	if erra != nil {
		va = Version{Upstream: a}
	}
	vb, errb := Parse(b)
	if errb != nil {
		vb = Version{Upstream: b}
	}
	return CompareVersions(va, vb)
}

// CompareVersions compares two parsed versions: epoch numerically first,
// then upstream version, then revision, the latter two via verrevcmp.
func CompareVersions(a, b Version) int {
	if a.Epoch != b.Epoch {
		if a.Epoch < b.Epoch {
			return -1
		}
		return 1
	}
	if c := verrevcmp(a.Upstream, b.Upstream); c != 0 {
		return c
	}
	return verrevcmp(a.Revision, b.Revision)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// order maps a character to its weight in the non-digit comparison: tilde
// sorts before everything including the end of the string (weight 0 is
// reserved for "no character left"), letters sort by ordinal, and all
// other characters sort after letters, again by ordinal.
func order(c byte) int {
	switch {
	case c == '~':
		return -1
	case isDigit(c):
		return 0
	case isAlpha(c):
		return int(c)
	default:
		return int(c) + 256
	}
}

// verrevcmp compares two version fragments by alternately consuming a
// non-digit run and a digit run from both strings, exactly as dpkg's
// verrevcmp does.
func verrevcmp(a, b string) int {
	i, j := 0, 0
	for i < len(a) || j < len(b) {
		firstDiff := 0

		for (i < len(a) && !isDigit(a[i])) || (j < len(b) && !isDigit(b[j])) {
			ac, bc := 0, 0
			if i < len(a) {
				ac = order(a[i])
			}
			if j < len(b) {
				bc = order(b[j])
			}
			if ac != bc {
				return ac - bc
			}
			i++
			j++
		}

		// Leading zeros are insignificant.
		for i < len(a) && a[i] == '0' {
			i++
		}
		for j < len(b) && b[j] == '0' {
			j++
		}
		for i < len(a) && j < len(b) && isDigit(a[i]) && isDigit(b[j]) {
			if firstDiff == 0 {
				firstDiff = int(a[i]) - int(b[j])
			}
			i++
			j++
		}
		// The longer digit run is the larger number.
		if i < len(a) && isDigit(a[i]) {
			return 1
		}
		if j < len(b) && isDigit(b[j]) {
			return -1
		}
		if firstDiff != 0 {
			return firstDiff
		}
	}
	return 0
}
