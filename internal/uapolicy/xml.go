package uapolicy

import (
	"encoding/xml"
	"fmt"
	"os"
	"regexp"
)

// xmlConfig mirrors the <useragentconfigs> document:
//
//	<useragentconfigs>
//	  <useragent expiry="3600" contactlists="false" agent="fring"/>
//	</useragentconfigs>
type xmlConfig struct {
	XMLName  xml.Name         `xml:"useragentconfigs"`
	Policies []xmlUserAgentUA `xml:"useragent"`
}

type xmlUserAgentUA struct {
	Expiry       *uint32 `xml:"expiry,attr"`
	ContactLists *bool   `xml:"contactlists,attr"`
	Agent        string  `xml:"agent,attr"`
}

// LoadFile parses a user-agent policy XML file into a Table. A missing or
// empty filename yields an empty table (every lookup falls through to
// defaults) rather than an error, since the policy table is optional.
func LoadFile(filename string) (*Table, error) {
	if filename == "" {
		return NewEmptyTable(), nil
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read useragent policy file %s: %w", filename, err)
	}
	return Parse(data)
}

// Parse decodes raw XML bytes into a Table.
func Parse(data []byte) (*Table, error) {
	var cfg xmlConfig
	if err := xml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse useragent policy XML: %w", err)
	}

	entries := make([]Entry, 0, len(cfg.Policies))
	for i, p := range cfg.Policies {
		if p.Agent == "" {
			return nil, fmt.Errorf("useragent entry %d: missing agent pattern", i)
		}
		pattern, err := regexp.Compile("(?i)" + p.Agent)
		if err != nil {
			return nil, fmt.Errorf("useragent entry %d: invalid agent pattern %q: %w", i, p.Agent, err)
		}

		var expiry uint32 = defaultMaxExpirySeconds
		if p.Expiry != nil {
			expiry = *p.Expiry
		}
		contactLists := defaultContactListSupported
		if p.ContactLists != nil {
			contactLists = *p.ContactLists
		}

		entries = append(entries, Entry{
			Pattern:              pattern,
			MaxExpirySeconds:     expiry,
			ContactListSupported: contactLists,
		})
	}

	return NewTable(entries), nil
}
