package quota

import (
	"bufio"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/beegfs/mgmtd/pkg/mgmterr"
)

// IDRange is an inclusive A-B range of UIDs or GIDs to track regardless
// of whether they appear in the local passwd/group database.
type IDRange struct {
	Start int64
	End   int64
}

// IdentitySource configures how tracked identities (step 1 of the quota
// cycle) are enumerated for one of user or group accounting. The three
// sources are unioned: a system account is tracked if its UID/GID clears
// MinID, in addition to anything named explicitly.
type IdentitySource struct {
	MinID     int64
	Ranges    []IDRange
	ListFiles []string
}

// Enumerate returns the sorted, de-duplicated set of tracked IDs for one
// identity source, reading passwdOrGroupPath (/etc/passwd or
// /etc/group) for the system-account contribution.
func Enumerate(src IdentitySource, passwdOrGroupPath string) ([]int64, error) {
	set := map[int64]struct{}{}

	systemIDs, err := readSystemIDs(passwdOrGroupPath)
	if err != nil {
		return nil, err
	}
	for _, id := range systemIDs {
		if id >= src.MinID {
			set[id] = struct{}{}
		}
	}

	for _, r := range src.Ranges {
		for id := r.Start; id <= r.End; id++ {
			set[id] = struct{}{}
		}
	}

	for _, path := range src.ListFiles {
		ids, err := readIDListFile(path)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			set[id] = struct{}{}
		}
	}

	out := make([]int64, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// readSystemIDs parses the third colon-separated field of an /etc/passwd
// or /etc/group formatted file. An empty path disables this source.
func readSystemIDs(path string) ([]int64, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, mgmterr.Wrap(mgmterr.KindIO, "open identity source", err)
	}
	defer f.Close()

	var ids []int64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, ":")
		if len(fields) < 3 {
			continue
		}
		id, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	if err := scanner.Err(); err != nil {
		return nil, mgmterr.Wrap(mgmterr.KindIO, "scan identity source", err)
	}
	return ids, nil
}

// readIDListFile parses whitespace-separated IDs from a file.
func readIDListFile(path string) ([]int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, mgmterr.Wrap(mgmterr.KindIO, "read id list file "+path, err)
	}
	var ids []int64
	for _, field := range strings.Fields(string(data)) {
		id, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}
