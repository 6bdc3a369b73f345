package catalogue

import (
	"strings"

	"github.com/spigell/programme-advisor/internal/contract"
	"github.com/spigell/programme-advisor/internal/utils"
)

// Separator joins rendered entry blocks.
const Separator = "\n\n---\n\n"

// ListingDescriptionLimit caps descriptions in programme listings, in runes.
const ListingDescriptionLimit = 200

// Render turns a catalogue into the text block embedded in the synthesis prompt.
// Only non-empty fields are written, always in the same order. A positive
// descriptionLimit caps each description in runes.
func Render(c contract.Catalogue, descriptionLimit int) string {
	blocks := make([]string, 0, len(c))
	for _, entry := range c {
		blocks = append(blocks, renderEntry(entry, descriptionLimit))
	}
	return strings.Join(blocks, Separator)
}

func renderEntry(e contract.CatalogueEntry, descriptionLimit int) string {
	lines := []string{"TITLE: " + strings.TrimSpace(e.Title)}

	fields := []struct {
		label string
		value string
	}{
		{"CATEGORY", e.Category},
		{"URL", e.URL},
		{"FEE", e.Fee},
		{"FORMAT", e.Format},
		{"LOCATION", e.Location},
		{"START DATE", e.StartDate},
		{"DESCRIPTION", utils.TruncateRunes(strings.TrimSpace(e.Description), descriptionLimit)},
	}

	for _, f := range fields {
		if value := strings.TrimSpace(f.value); value != "" {
			lines = append(lines, f.label+": "+value)
		}
	}

	return strings.Join(lines, "\n")
}

// Summaries copies the catalogue with descriptions cut to limit runes for listings.
func Summaries(c contract.Catalogue, limit int) contract.Catalogue {
	out := make(contract.Catalogue, len(c))
	for i, entry := range c {
		entry.Description = utils.TruncateRunes(strings.TrimSpace(entry.Description), limit)
		out[i] = entry
	}
	return out
}
