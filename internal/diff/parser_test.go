package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwhitney/diffscope/internal/domain"
)

const sampleDiff = `diff --git a/lib/core/billing.ts b/lib/core/billing.ts
index 1111111..2222222 100644
--- a/lib/core/billing.ts
+++ b/lib/core/billing.ts
@@ -10,3 +10,4 @@ export function charge() {
 const tax = 0.2;
-const total = amount;
+const total = amount * (1 + tax);
+const rounded = Math.round(total);
 return rounded;
@@ -40,2 +41,3 @@
 function refund() {
 }
+export { refund };
diff --git a/app/api/billing/route.ts b/app/api/billing/route.ts
new file mode 100644
index 0000000..3333333
--- /dev/null
+++ b/app/api/billing/route.ts
@@ -0,0 +1,2 @@
+import { charge } from "../../../lib/core/billing";
+export const POST = charge;
`

func TestParse_FileAndLineCounts(t *testing.T) {
	files := Parse(sampleDiff)
	require.Len(t, files, 2)

	billing := files[0]
	assert.Equal(t, "lib/core/billing.ts", billing.Path)
	assert.Equal(t, domain.FileStatusModified, billing.Status)
	assert.Equal(t, 3, billing.Additions)
	assert.Equal(t, 1, billing.Deletions)
	require.Len(t, billing.Chunks, 2)

	route := files[1]
	assert.Equal(t, "app/api/billing/route.ts", route.Path)
	assert.Equal(t, domain.FileStatusAdded, route.Status)
	assert.Equal(t, 2, route.Additions)
	assert.Equal(t, 0, route.Deletions)
}

// File-level counts must equal the per-chunk add/del change totals.
func TestParse_CountsMatchChunks(t *testing.T) {
	files := Parse(sampleDiff)
	require.NotEmpty(t, files)

	for _, file := range files {
		adds, dels := 0, 0
		for _, chunk := range file.Chunks {
			for _, change := range chunk.Changes {
				switch change.Type {
				case domain.ChangeAdd:
					adds++
				case domain.ChangeDel:
					dels++
				}
			}
		}
		assert.Equal(t, file.Additions, adds, "additions for %s", file.Path)
		assert.Equal(t, file.Deletions, dels, "deletions for %s", file.Path)
	}
}

func TestParse_LineNumbersTrackHunkHeader(t *testing.T) {
	files := Parse(sampleDiff)
	require.Len(t, files, 2)

	chunk := files[0].Chunks[0]
	assert.Equal(t, 10, chunk.OldStart)
	assert.Equal(t, 10, chunk.NewStart)

	// context "const tax" sits at new line 10, the deletion at old line 11,
	// the two additions at new lines 11 and 12.
	require.Len(t, chunk.Changes, 5)
	assert.Equal(t, domain.ParsedChange{Type: domain.ChangeNormal, Content: "const tax = 0.2;", LineNumber: 10}, chunk.Changes[0])
	assert.Equal(t, domain.ParsedChange{Type: domain.ChangeDel, Content: "const total = amount;", LineNumber: 11}, chunk.Changes[1])
	assert.Equal(t, domain.ParsedChange{Type: domain.ChangeAdd, Content: "const total = amount * (1 + tax);", LineNumber: 11}, chunk.Changes[2])
	assert.Equal(t, domain.ParsedChange{Type: domain.ChangeAdd, Content: "const rounded = Math.round(total);", LineNumber: 12}, chunk.Changes[3])
	assert.Equal(t, domain.ParsedChange{Type: domain.ChangeNormal, Content: "return rounded;", LineNumber: 13}, chunk.Changes[4])

	// New-side line numbers increase monotonically within each hunk.
	for _, file := range files {
		for _, c := range file.Chunks {
			last := 0
			for _, change := range c.Changes {
				if change.Type == domain.ChangeDel {
					continue
				}
				assert.Greater(t, change.LineNumber, last)
				last = change.LineNumber
			}
		}
	}
}

func TestParse_DeletedFile(t *testing.T) {
	raw := `diff --git a/old.py b/old.py
deleted file mode 100644
index 4444444..0000000
--- a/old.py
+++ /dev/null
@@ -1,2 +0,0 @@
-def gone():
-    pass
`
	files := Parse(raw)
	require.Len(t, files, 1)
	assert.Equal(t, "old.py", files[0].Path)
	assert.Equal(t, domain.FileStatusDeleted, files[0].Status)
	assert.Equal(t, 2, files[0].Deletions)
}

func TestParse_PureRenameHasEmptyChunks(t *testing.T) {
	raw := `diff --git a/src/utils.ts b/src/helpers.ts
similarity index 100%
rename from src/utils.ts
rename to src/helpers.ts
`
	files := Parse(raw)
	require.Len(t, files, 1)
	assert.Equal(t, "src/helpers.ts", files[0].Path)
	assert.Equal(t, "src/utils.ts", files[0].OldPath)
	assert.Equal(t, domain.FileStatusRenamed, files[0].Status)
	assert.Empty(t, files[0].Chunks)
	assert.Zero(t, files[0].Additions)
	assert.Zero(t, files[0].Deletions)
}

// A corrupt section must not take down parsing of its siblings.
func TestParse_SkipsMalformedSection(t *testing.T) {
	raw := "diff --git a/bad b/bad\nthis is not a diff at all\n" + sampleDiff
	files := Parse(raw)
	require.Len(t, files, 2)
	assert.Equal(t, "lib/core/billing.ts", files[0].Path)
}

func TestParse_EmptyInput(t *testing.T) {
	assert.Nil(t, Parse(""))
	assert.Nil(t, Parse("  \n "))
}
