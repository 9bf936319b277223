package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"

	"panelcast/internal/fileutil"
	"panelcast/internal/services"
)

// CharacterNamesFile is written into the character directory by StageInputs.
const CharacterNamesFile = "character_names.txt"

var imageExtensions = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
}

// StageRequest lists local files to copy into the input directories.
type StageRequest struct {
	Pages          []string
	Characters     []string
	CharacterNames []string
	// Replace empties the raw and character directories first.
	Replace bool
}

// StageReport summarizes a StageInputs call.
type StageReport struct {
	Pages      []string
	Characters []string
	NamesFile  string
}

// StageInputs copies chapter pages and character references into the
// workspace. Only PNG and JPEG images are accepted; destination names are
// NFC-normalized.
func StageInputs(l Layout, req StageRequest) (StageReport, error) {
	for _, src := range append(append([]string(nil), req.Pages...), req.Characters...) {
		if !isImage(src) {
			return StageReport{}, services.Wrap(services.ErrValidation, "workspace", "stage inputs",
				fmt.Sprintf("%s is not a png or jpeg image", src), nil)
		}
	}

	if req.Replace {
		for _, dir := range []string{l.Raw, l.Character} {
			if err := fileutil.ResetDir(dir); err != nil {
				return StageReport{}, services.Wrap(services.ErrWorkspace, "workspace", "stage inputs", "reset "+dir, err)
			}
		}
	}
	for _, dir := range l.Inputs() {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return StageReport{}, services.Wrap(services.ErrWorkspace, "workspace", "stage inputs", "create "+dir, err)
		}
	}

	var report StageReport
	var err error
	if report.Pages, err = copyImages(req.Pages, l.Raw); err != nil {
		return StageReport{}, err
	}
	if report.Characters, err = copyImages(req.Characters, l.Character); err != nil {
		return StageReport{}, err
	}

	names := cleanNames(req.CharacterNames)
	if len(names) > 0 {
		report.NamesFile = filepath.Join(l.Character, CharacterNamesFile)
		if err := os.WriteFile(report.NamesFile, []byte(strings.Join(names, ",")), 0o644); err != nil {
			return StageReport{}, services.Wrap(services.ErrWorkspace, "workspace", "stage inputs", "write character names", err)
		}
	}
	return report, nil
}

func copyImages(sources []string, destDir string) ([]string, error) {
	copied := make([]string, 0, len(sources))
	for _, src := range sources {
		dst := filepath.Join(destDir, norm.NFC.String(filepath.Base(src)))
		if err := fileutil.CopyFileVerified(src, dst); err != nil {
			return nil, services.Wrap(services.ErrWorkspace, "workspace", "stage inputs", "copy "+src, err)
		}
		copied = append(copied, dst)
	}
	return copied, nil
}

func isImage(path string) bool {
	_, ok := imageExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

func cleanNames(raw []string) []string {
	var names []string
	for _, entry := range raw {
		for _, part := range strings.Split(entry, ",") {
			if name := strings.TrimSpace(norm.NFC.String(part)); name != "" {
				names = append(names, name)
			}
		}
	}
	return names
}
