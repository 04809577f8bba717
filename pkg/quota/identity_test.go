package quota

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePasswdFile(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "passwd")
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestEnumerate_SystemAccountsFilteredByMinID(t *testing.T) {
	path := writePasswdFile(t,
		"root:x:0:0:root:/root:/bin/bash",
		"daemon:x:1:1:daemon:/usr/sbin:/usr/sbin/nologin",
		"alice:x:1001:1001:Alice:/home/alice:/bin/bash",
	)

	ids, err := Enumerate(IdentitySource{MinID: 1000}, path)
	require.NoError(t, err)
	assert.Equal(t, []int64{1001}, ids)
}

func TestEnumerate_ExplicitRangeIsUnioned(t *testing.T) {
	path := writePasswdFile(t, "root:x:0:0:root:/root:/bin/bash")

	ids, err := Enumerate(IdentitySource{MinID: 1000, Ranges: []IDRange{{Start: 5, End: 7}}}, path)
	require.NoError(t, err)
	assert.Equal(t, []int64{5, 6, 7}, ids)
}

func TestEnumerate_IDListFileIsUnionedAndDeduplicated(t *testing.T) {
	path := writePasswdFile(t, "root:x:0:0:root:/root:/bin/bash")
	listPath := filepath.Join(t.TempDir(), "ids.txt")
	require.NoError(t, os.WriteFile(listPath, []byte("5\n6\n6\n"), 0o600))

	ids, err := Enumerate(IdentitySource{Ranges: []IDRange{{Start: 6, End: 8}}, ListFiles: []string{listPath}}, path)
	require.NoError(t, err)
	assert.Equal(t, []int64{5, 6, 7, 8}, ids)
}

func TestEnumerate_MissingPasswdFileIsTreatedAsEmpty(t *testing.T) {
	ids, err := Enumerate(IdentitySource{MinID: 0, Ranges: []IDRange{{Start: 1, End: 2}}}, "/nonexistent/passwd")
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids)
}

func TestEnumerate_ResultsSortedAscending(t *testing.T) {
	path := writePasswdFile(t,
		"userA:x:2000:2000::/home/a:/bin/bash",
		"userB:x:1000:1000::/home/b:/bin/bash",
	)
	ids, err := Enumerate(IdentitySource{MinID: 0}, path)
	require.NoError(t, err)
	assert.Equal(t, []int64{1000, 2000}, ids)
}
