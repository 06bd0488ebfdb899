package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

var ErrInvalidWindow = errors.New("invalid_effective_window")

// NotFoundError reports that no policy is effective for the requested
// window anywhere along the region ancestry.
type NotFoundError struct {
	Start       time.Time
	End         time.Time
	RegionChain []snowflake.ID
}

func (e *NotFoundError) Error() string {
	ids := make([]string, 0, len(e.RegionChain))
	for _, id := range e.RegionChain {
		ids = append(ids, id.String())
	}
	return fmt.Sprintf("no price policy effective in [%s, %s) for regions [%s]",
		e.Start.Format(time.RFC3339), e.End.Format(time.RFC3339), strings.Join(ids, ", "))
}
