package redis

import (
	"context"
	"reflect"

	"github.com/redis/go-redis/v9"
)

// addWithIncrement appends value to the sorted set with a score one above
// the current maximum, so ZRANGE returns insertion order.
func (r repo) addWithIncrement(ctx context.Context, key string, value interface{}) error {
	return r.maxScoreScript.Run(ctx, r.rc, []string{key}, value).Err()
}

// claimMemberName reserves name in the room for memberId. It reports false
// when another member already holds it.
func (r repo) claimMemberName(ctx context.Context, roomId, name, memberId string) (bool, error) {
	res, err := r.claimNameScript.Run(ctx, r.rc, []string{r.getMemberNamesKey(roomId)}, name, memberId, r.getMemberKey("")).Int()
	if err != nil {
		return false, err
	}

	return res == 1, nil
}

// releaseMemberName frees name only if memberId still holds it.
func (r repo) releaseMemberName(ctx context.Context, roomId, name, memberId string) error {
	return r.releaseNameScript.Run(ctx, r.rc, []string{r.getMemberNamesKey(roomId)}, name, memberId).Err()
}

func (r repo) hSetStruct(ctx context.Context, c redis.Cmdable, key string, value interface{}) error {
	v := reflect.ValueOf(value)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	fields := make(map[string]interface{})
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		tag := t.Field(i).Tag.Get("redis")
		if tag == "" {
			tag = t.Field(i).Name
		}

		if field.Kind() == reflect.Ptr && field.IsNil() {
			continue
		}

		if field.Kind() == reflect.Ptr {
			fields[tag] = field.Elem().Interface()
		} else {
			fields[tag] = field.Interface()
		}
	}

	return c.HSet(ctx, key, fields).Err()
}

func (r repo) executePipe(ctx context.Context, pipe redis.Pipeliner) error {
	cmds, err := pipe.Exec(ctx)
	if err != nil {
		for _, cmd := range cmds {
			if err := cmd.Err(); err != nil {
				return err
			}
		}

		return err
	}

	return nil
}
