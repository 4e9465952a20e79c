package motion

import (
	"fmt"
	"math/rand"
	"sort"
)

// StatusKeyframe pins a character status ("n", "blink", ...) at one
// instant. Statuses hold until the next keyframe (step semantics), unlike
// numeric attributes which interpolate.
type StatusKeyframe struct {
	Time   float64
	Status string
}

// StatusTimeline is the step-valued counterpart of Timeline, used for
// character state such as expression and blink phases.
type StatusTimeline struct {
	def  string
	keys []StatusKeyframe
	rev  uint64
}

// NewStatusTimeline creates an empty status timeline returning def before
// the first keyframe.
func NewStatusTimeline(def string) *StatusTimeline {
	return &StatusTimeline{def: def}
}

func (st *StatusTimeline) Len() int         { return len(st.keys) }
func (st *StatusTimeline) Revision() uint64 { return st.rev }

func (st *StatusTimeline) search(t float64) int {
	return sort.Search(len(st.keys), func(i int) bool {
		return st.keys[i].Time >= t
	})
}

// Insert adds a status keyframe, keeping times ascending and unique.
func (st *StatusTimeline) Insert(k StatusKeyframe) error {
	i := st.search(k.Time)
	if i < len(st.keys) && st.keys[i].Time == k.Time {
		return fmt.Errorf("%w: t=%v", ErrDuplicateKeyframeTime, k.Time)
	}
	st.keys = append(st.keys, StatusKeyframe{})
	copy(st.keys[i+1:], st.keys[i:])
	st.keys[i] = k
	st.rev++
	return nil
}

// Remove deletes the status keyframe at exactly time t.
func (st *StatusTimeline) Remove(t float64) error {
	i := st.search(t)
	if i >= len(st.keys) || st.keys[i].Time != t {
		return fmt.Errorf("%w: t=%v", ErrKeyframeNotFound, t)
	}
	st.keys = append(st.keys[:i], st.keys[i+1:]...)
	st.rev++
	return nil
}

// StatusAt returns the status holding at time t: the last keyframe at or
// before t, or the default when t precedes every keyframe.
func (st *StatusTimeline) StatusAt(t float64) string {
	i := st.search(t)
	if i < len(st.keys) && st.keys[i].Time == t {
		return st.keys[i].Status
	}
	if i == 0 {
		return st.def
	}
	return st.keys[i-1].Status
}

// GenerateBlinks lays blink keyframes over [0, duration): at the configured
// rate each blink switches the status to blinkStatus for blinkDuration
// seconds and then back to restStatus. An empty restStatus restores
// whichever status was holding when the blink started, so blinks can be
// layered over expression changes. The seed makes the jittered blink
// times reproducible across renders of the same project.
func GenerateBlinks(st *StatusTimeline, duration float64, perMinute float64, blinkDuration float64, restStatus, blinkStatus string, seed int64) error {
	if perMinute <= 0 || blinkDuration <= 0 || duration <= 0 {
		return nil
	}
	r := rand.New(rand.NewSource(seed))
	interval := 60.0 / perMinute
	// Jitter each blink within its slot so characters do not blink in
	// lockstep.
	for t := interval * r.Float64(); t+blinkDuration < duration; t += interval * (0.7 + 0.6*r.Float64()) {
		rest := restStatus
		if rest == "" {
			rest = st.StatusAt(t)
		}
		if err := st.Insert(StatusKeyframe{Time: t, Status: blinkStatus}); err != nil {
			return err
		}
		if err := st.Insert(StatusKeyframe{Time: t + blinkDuration, Status: rest}); err != nil {
			return err
		}
	}
	return nil
}
