package cli

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/erg0nix/recall/internal/core"
)

// DescribeError renders err with a hint for the error kinds a user can act on.
func DescribeError(err error) string {
	var tooLarge *core.BatchTooLargeError

	switch {
	case errors.As(err, &tooLarge):
		return styledError(
			fmt.Sprintf("batch too large: %d entries, limit is %d", tooLarge.Requested, tooLarge.Limit),
			"re-run with --yes to perform them anyway",
			"or raise memory.max_batch_perform (RECALL_MAX_BATCH_PERFORM)",
		)
	case errors.Is(err, core.ErrBatchTooLarge):
		return styledError(err.Error(), "re-run with --yes to perform them anyway")
	case errors.Is(err, core.ErrNothingToPerform):
		return styledError(err.Error(), "add entries with: recall remember <text>")
	case errors.Is(err, core.ErrNotFound):
		return styledError(err.Error(), "list entries with: recall remember list")
	case errors.Is(err, core.ErrInvalidRole):
		return styledError(err.Error())
	case errors.Is(err, core.ErrInvalidInput):
		return styledError(err.Error(), "see: recall help")
	case errors.Is(err, core.ErrStorageCorruption):
		return styledError(err.Error(),
			"no readable snapshot was found in the data dir",
			"set snapshot.allow_fresh_start = true to start empty")
	}

	if st, ok := status.FromError(err); ok && st.Code() == codes.Unavailable {
		return styledError("daemon is not reachable: "+st.Message(),
			"start it with: recall serve",
			"or pass --local to use the data dir directly")
	}

	return styledError(err.Error())
}
