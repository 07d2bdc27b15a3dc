package msgpack

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type msgpackLessonCompleted struct {
	UserID      string    `msgpack:"user_id"`
	LessonID    string    `msgpack:"lesson_id"`
	CourseID    string    `msgpack:"course_id"`
	CompletedAt time.Time `msgpack:"completed_at"`
}

func TestSerializer_RoundTrip(t *testing.T) {
	t.Run("registered type round-trips to a typed pointer", func(t *testing.T) {
		s := NewSerializer()
		s.Register("msgpackLessonCompleted", msgpackLessonCompleted{})

		original := msgpackLessonCompleted{
			UserID:      "user-1",
			LessonID:    "lesson-1",
			CourseID:    "course-1",
			CompletedAt: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		}

		data, err := s.Serialize(original)
		require.NoError(t, err)

		decoded, err := s.Deserialize("msgpackLessonCompleted", data)
		require.NoError(t, err)

		typed, ok := decoded.(*msgpackLessonCompleted)
		require.True(t, ok)
		assert.Equal(t, original, *typed)
	})

	t.Run("unregistered type falls back to a map", func(t *testing.T) {
		s := NewSerializer()

		data, err := s.Serialize(map[string]interface{}{"user_id": "user-1"})
		require.NoError(t, err)

		decoded, err := s.Deserialize("SomethingUnknown", data)
		require.NoError(t, err)

		m, ok := decoded.(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "user-1", m["user_id"])
	})

	t.Run("nil event cannot be serialized", func(t *testing.T) {
		s := NewSerializer()

		_, err := s.Serialize(nil)

		assert.Error(t, err)
	})
}

func TestSerializer_ContentType(t *testing.T) {
	assert.Equal(t, "application/msgpack", NewSerializer().ContentType())
}
