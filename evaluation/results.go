package evaluation

import (
	"fmt"
	"os"
	"strings"
)

// Row is one scored (prompt, image) pair. Rows are append-only; the full set
// for an experiment is serialized once at the end of the scan.
type Row struct {
	PromptID        int
	ImageID         int
	Score           float64
	UserPrompt      string
	OptimizedPrompt string
	ImagePath       string
}

var resultColumns = []string{"prompt_id", "image_id", "score", "user_prompt", "optimized_prompt", "image_path"}

// writeTSV serializes rows as a tab-separated table with a header line. Row
// order follows the accumulator, which follows directory listing order;
// consumers must not assume sorting.
func writeTSV(path string, rows []Row) error {
	var sb strings.Builder
	sb.WriteString(strings.Join(resultColumns, "\t"))
	sb.WriteByte('\n')
	for _, r := range rows {
		fmt.Fprintf(&sb, "%d\t%d\t%g\t%s\t%s\t%s\n",
			r.PromptID, r.ImageID, r.Score, r.UserPrompt, r.OptimizedPrompt, r.ImagePath)
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}
	return nil
}
