package imapmail

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/emersion/go-imap"
)

// Gmail IMAP extensions.
const (
	fetchThreadID imap.FetchItem = "X-GM-THRID"
	fetchLabels   imap.FetchItem = "X-GM-LABELS"
)

// storeLabels adds or removes Gmail labels with UID STORE X-GM-LABELS.
// Gmail creates unknown labels on the fly.
type storeLabels struct {
	SeqSet *imap.SeqSet
	Add    bool
	Labels []string
}

func (s *storeLabels) Command() *imap.Command {
	op := "-X-GM-LABELS"
	if s.Add {
		op = "+X-GM-LABELS"
	}

	quoted := make([]string, 0, len(s.Labels))
	for _, label := range s.Labels {
		if strings.ContainsAny(label, " \"\\") {
			quoted = append(quoted, strconv.Quote(label))
			continue
		}
		quoted = append(quoted, label)
	}

	return &imap.Command{
		Name:      "UID STORE",
		Arguments: []interface{}{s.SeqSet, imap.RawString(op), imap.RawString("(" + strings.Join(quoted, " ") + ")")},
	}
}

func parseIDValue(v interface{}) string {
	switch value := v.(type) {
	case nil:
		return ""
	case uint64:
		return strconv.FormatUint(value, 10)
	case uint32:
		return strconv.FormatUint(uint64(value), 10)
	case int64:
		return strconv.FormatInt(value, 10)
	case string:
		return value
	default:
		return fmt.Sprintf("%v", value)
	}
}

func parseUID(id string) (uint32, error) {
	uid, err := strconv.ParseUint(id, 10, 32)
	if err != nil || uid == 0 {
		return 0, fmt.Errorf("imap: invalid message id %q", id)
	}
	return uint32(uid), nil
}

func formatUID(uid uint32) string {
	return strconv.FormatUint(uint64(uid), 10)
}
