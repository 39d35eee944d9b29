package osv

import (
	"encoding/json"
	"fmt"
)

// Ecosystem is a package ecosystem named by an advisory. The set is closed:
// values outside it fail to decode and fail to encode.
type Ecosystem string

const (
	EcosystemGo            Ecosystem = "Go"
	EcosystemNPM           Ecosystem = "npm"
	EcosystemOSSFuzz       Ecosystem = "OSS-Fuzz"
	EcosystemPyPI          Ecosystem = "PyPI"
	EcosystemRubyGems      Ecosystem = "RubyGems"
	EcosystemCratesIO      Ecosystem = "crates.io"
	EcosystemPackagist     Ecosystem = "Packagist"
	EcosystemMaven         Ecosystem = "Maven"
	EcosystemNuGet         Ecosystem = "NuGet"
	EcosystemLinux         Ecosystem = "Linux"
	EcosystemDebian        Ecosystem = "Debian"
	EcosystemHex           Ecosystem = "Hex"
	EcosystemAndroid       Ecosystem = "Android"
	EcosystemGitHubActions Ecosystem = "GitHub Actions"
	EcosystemPub           Ecosystem = "Pub"
)

// Ecosystems lists every known ecosystem.
var Ecosystems = []Ecosystem{
	EcosystemGo,
	EcosystemNPM,
	EcosystemOSSFuzz,
	EcosystemPyPI,
	EcosystemRubyGems,
	EcosystemCratesIO,
	EcosystemPackagist,
	EcosystemMaven,
	EcosystemNuGet,
	EcosystemLinux,
	EcosystemDebian,
	EcosystemHex,
	EcosystemAndroid,
	EcosystemGitHubActions,
	EcosystemPub,
}

// Valid reports whether e is one of the known ecosystems. Matching is exact,
// so "NPM" or "pypi" are not valid.
func (e Ecosystem) Valid() bool {
	switch e {
	case EcosystemGo, EcosystemNPM, EcosystemOSSFuzz, EcosystemPyPI,
		EcosystemRubyGems, EcosystemCratesIO, EcosystemPackagist, EcosystemMaven,
		EcosystemNuGet, EcosystemLinux, EcosystemDebian, EcosystemHex,
		EcosystemAndroid, EcosystemGitHubActions, EcosystemPub:
		return true
	}
	return false
}

func (e Ecosystem) String() string { return string(e) }

func (e *Ecosystem) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("ecosystem: %w", err)
	}
	if !Ecosystem(s).Valid() {
		return unknown("ecosystem", s)
	}
	*e = Ecosystem(s)
	return nil
}

func (e Ecosystem) MarshalJSON() ([]byte, error) {
	if !e.Valid() {
		return nil, unknown("ecosystem", string(e))
	}
	return json.Marshal(string(e))
}
