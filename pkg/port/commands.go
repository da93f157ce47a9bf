package port

import (
	"errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/nobletooth/cmdcache/pkg/cache"
	"github.com/nobletooth/cmdcache/pkg/cascade"
	"github.com/nobletooth/cmdcache/pkg/scan"
	"github.com/nobletooth/cmdcache/pkg/snowflake"
)

// Backend is what the Redis port operates on.
type Backend struct {
	Associations cache.Associations
	// Deletions receives the notifications sent with DELETED. Optional; DELETED fails without it.
	Deletions chan<- cascade.Deletion
	// Channel is attached to every notification sent with DELETED.
	Channel cascade.Channel
}

type redisHandler struct {
	backend Backend
}

// newRedisHandler creates a new redisHandler.
func newRedisHandler(backend Backend) (*redisHandler, error) {
	if backend.Associations == nil {
		return nil, errors.New("expected non-nil associations")
	}
	return &redisHandler{backend: backend}, nil
}

// parseID parses a decimal snowflake ID.
func parseID(arg string) (uint64, error) {
	id, err := strconv.ParseUint(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("'%s' is not a valid snowflake id", arg)
	}
	return id, nil
}

// parseIDs parses every argument as a decimal snowflake ID.
func parseIDs(args []string) ([]uint64, error) {
	ids := make([]uint64, len(args))
	for i, arg := range args {
		id, err := parseID(arg)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}

func wrongArgs(command string) redisOutput {
	return writeRedisError(fmt.Errorf("wrong number of arguments for '%s' command", command))
}

// formatIDs renders IDs in decimal.
func formatIDs(ids []uint64) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = strconv.FormatUint(id, 10)
	}
	return out
}

func (rh *redisHandler) handle(cmd redisCommand) redisOutput {
	associations := rh.backend.Associations
	switch cmd.command {
	case "PING":
		return writeRedisString("PONG")
	case "QUIT":
		return closeRedisConnection(RedisOk)
	case "RECORD":
		if len(cmd.args) < 2 {
			return wrongArgs(cmd.command)
		}
		ids, err := parseIDs(cmd.args)
		if err != nil {
			return writeRedisError(err)
		}
		if err := associations.RecordMany(ids[0], ids[1:]); err != nil {
			return writeRedisError(err)
		}
		return writeRedisString(RedisOk)
	case "LOOKUP":
		if len(cmd.args) != 1 {
			return wrongArgs(cmd.command)
		}
		primary, err := parseID(cmd.args[0])
		if err != nil {
			return writeRedisError(err)
		}
		secondaries, found := associations.Lookup(primary)
		if !found {
			return writeRedisNil()
		}
		return writeRedisArray(formatIDs(secondaries))
	case "CONTAINS":
		if len(cmd.args) != 1 {
			return wrongArgs(cmd.command)
		}
		primary, err := parseID(cmd.args[0])
		if err != nil {
			return writeRedisError(err)
		}
		if associations.Contains(primary) {
			return writeRedisInt(1)
		}
		return writeRedisInt(0)
	case "REMOVE":
		if len(cmd.args) < 1 {
			return wrongArgs(cmd.command)
		}
		primaries, err := parseIDs(cmd.args)
		if err != nil {
			return writeRedisError(err)
		}
		removedCount := 0
		for _, primary := range primaries {
			if associations.Remove(primary) {
				removedCount++
			}
		}
		return writeRedisInt(removedCount)
	case "CLEAR":
		associations.Clear()
		return writeRedisString(RedisOk)
	case "COUNT":
		return writeRedisInt(associations.Count())
	case "KEYS":
		if len(cmd.args) != 1 {
			return wrongArgs(cmd.command)
		}
		matched := slices.Collect(scan.MatchGlob([]byte(cmd.args[0]), slices.Values(associations.Keys())))
		return writeRedisArray(formatIDs(matched))
	case "SWEEP":
		return writeRedisInt(associations.Sweep())
	case "TIMESTAMP":
		if len(cmd.args) != 1 {
			return wrongArgs(cmd.command)
		}
		id, err := parseID(cmd.args[0])
		if err != nil {
			return writeRedisError(err)
		}
		return writeRedisInt(int(snowflake.TimestampMillis(id)))
	case "DELETED":
		if len(cmd.args) != 1 {
			return wrongArgs(cmd.command)
		}
		primary, err := parseID(cmd.args[0])
		if err != nil {
			return writeRedisError(err)
		}
		if rh.backend.Deletions == nil {
			return writeRedisError(errors.New("deletion feed is not configured"))
		}
		select {
		case rh.backend.Deletions <- cascade.Deletion{Primary: primary, Channel: rh.backend.Channel}:
			return writeRedisString(RedisOk)
		default:
			return writeRedisError(errors.New("deletion feed is full"))
		}
	default:
		return writeRedisError(fmt.Errorf("unknown command '%s'", cmd.command))
	}
}
