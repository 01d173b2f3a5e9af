package diff

import (
	"strings"

	godiff "github.com/sourcegraph/go-diff/diff"

	"github.com/cwhitney/diffscope/internal/domain"
)

const devNull = "/dev/null"

// Parse parses a unified diff blob into per-file change records.
// Input is expected in the format produced by git and by source-control
// compare APIs. Malformed file sections are dropped silently.
func Parse(raw string) []domain.ParsedFile {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	var files []domain.ParsedFile
	for _, section := range splitFileSections(raw) {
		fd, err := godiff.ParseFileDiff([]byte(section))
		if err != nil {
			continue
		}
		files = append(files, buildParsedFile(fd, section))
	}
	return files
}

// splitFileSections cuts the blob at "diff --git" boundaries. Diffs that
// lack the git header line (plain ---/+++ output) are treated as a single
// section.
func splitFileSections(raw string) []string {
	lines := strings.Split(raw, "\n")

	var sections []string
	var current []string
	for _, line := range lines {
		if strings.HasPrefix(line, "diff --git ") && len(current) > 0 {
			sections = append(sections, strings.Join(current, "\n"))
			current = current[:0]
		}
		current = append(current, line)
	}
	if len(current) > 0 {
		sections = append(sections, strings.Join(current, "\n"))
	}
	return sections
}

func buildParsedFile(fd *godiff.FileDiff, section string) domain.ParsedFile {
	path, oldPath, status := pathAndStatus(fd, section)

	file := domain.ParsedFile{
		Path:    path,
		OldPath: oldPath,
		Status:  status,
		Chunks:  []domain.ParsedChunk{},
	}

	for _, hunk := range fd.Hunks {
		chunk := domain.ParsedChunk{
			OldStart: int(hunk.OrigStartLine),
			NewStart: int(hunk.NewStartLine),
		}

		oldLine := int(hunk.OrigStartLine)
		newLine := int(hunk.NewStartLine)
		for _, body := range strings.Split(string(hunk.Body), "\n") {
			if body == "" || strings.HasPrefix(body, "\\") {
				continue
			}
			switch body[0] {
			case '+':
				chunk.Changes = append(chunk.Changes, domain.ParsedChange{
					Type:       domain.ChangeAdd,
					Content:    body[1:],
					LineNumber: newLine,
				})
				newLine++
				file.Additions++
			case '-':
				chunk.Changes = append(chunk.Changes, domain.ParsedChange{
					Type:       domain.ChangeDel,
					Content:    body[1:],
					LineNumber: oldLine,
				})
				oldLine++
				file.Deletions++
			default:
				content := body
				if body[0] == ' ' {
					content = body[1:]
				}
				chunk.Changes = append(chunk.Changes, domain.ParsedChange{
					Type:       domain.ChangeNormal,
					Content:    content,
					LineNumber: newLine,
				})
				oldLine++
				newLine++
			}
		}

		file.Chunks = append(file.Chunks, chunk)
	}

	return file
}

// pathAndStatus derives (path, oldPath, status) from parsed names and the
// extended headers. Pure renames carry no ---/+++ lines, so the rename
// headers and the "diff --git" line are consulted as fallbacks.
func pathAndStatus(fd *godiff.FileDiff, section string) (string, string, string) {
	orig := stripPrefix(fd.OrigName)
	updated := stripPrefix(fd.NewName)

	renameFrom, renameTo := renameHeaders(fd.Extended)

	switch {
	case hasExtended(fd.Extended, "new file mode"):
		return updated, "", domain.FileStatusAdded
	case hasExtended(fd.Extended, "deleted file mode"):
		return orig, "", domain.FileStatusDeleted
	case renameTo != "":
		return renameTo, renameFrom, domain.FileStatusRenamed
	case orig == devNull || orig == "":
		if updated == "" || updated == devNull {
			updated = pathFromGitLine(section)
		}
		if orig == devNull {
			return updated, "", domain.FileStatusAdded
		}
		return updated, "", domain.FileStatusModified
	case updated == devNull:
		return orig, "", domain.FileStatusDeleted
	case orig != updated:
		return updated, orig, domain.FileStatusRenamed
	default:
		return updated, "", domain.FileStatusModified
	}
}

func renameHeaders(extended []string) (from, to string) {
	for _, header := range extended {
		if strings.HasPrefix(header, "rename from ") {
			from = strings.TrimPrefix(header, "rename from ")
		}
		if strings.HasPrefix(header, "rename to ") {
			to = strings.TrimPrefix(header, "rename to ")
		}
	}
	return from, to
}

func hasExtended(extended []string, prefix string) bool {
	for _, header := range extended {
		if strings.HasPrefix(header, prefix) {
			return true
		}
	}
	return false
}

// stripPrefix removes the conventional a/ or b/ diff prefix.
func stripPrefix(name string) string {
	if strings.HasPrefix(name, "a/") || strings.HasPrefix(name, "b/") {
		return name[2:]
	}
	return name
}

// pathFromGitLine extracts the post-change path from a "diff --git a/x b/x"
// line. Used when neither name headers nor extended headers carry a path.
func pathFromGitLine(section string) string {
	for _, line := range strings.Split(section, "\n") {
		if !strings.HasPrefix(line, "diff --git ") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) >= 4 {
			return stripPrefix(fields[3])
		}
	}
	return ""
}
