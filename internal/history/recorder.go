package history

import (
	"context"
	"time"

	"github.com/google/uuid"

	"firestige.xyz/callwatch/internal/log"
	"firestige.xyz/callwatch/internal/report"
	"firestige.xyz/callwatch/internal/session"
)

const writeTimeout = 2 * time.Second

// Recorder turns the snapshot stream into call records. A call starts when
// the call status turns On and ends when it leaves On.
type Recorder struct {
	store  *Store
	logger log.Logger

	callID string
	video  session.Status
	audio  session.Status
}

func NewRecorder(store *Store) *Recorder {
	return &Recorder{store: store, logger: log.GetLogger()}
}

// Observe implements report.Observer.
func (r *Recorder) Observe(s report.Snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := r.observe(ctx, s); err != nil {
		r.logger.WithError(err).Warn("history write failed")
	}
}

func (r *Recorder) observe(ctx context.Context, s report.Snapshot) error {
	inCall := r.callID != ""

	switch {
	case !inCall && s.Call == session.StatusOn:
		id := uuid.NewString()
		if err := r.store.StartCall(ctx, id, s.UpdatedAt); err != nil {
			return err
		}
		r.callID = id
		r.video, r.audio = session.StatusUnknown, session.StatusUnknown
		r.logger.WithField("call", id).Info("call started")

	case inCall && s.Call != session.StatusOn:
		id := r.callID
		r.callID = ""
		if err := r.store.EndCall(ctx, id, s.UpdatedAt); err != nil {
			return err
		}
		r.logger.WithField("call", id).Info("call ended")
		return nil

	case !inCall:
		return nil
	}

	if s.Video != r.video {
		if err := r.store.AddEvent(ctx, Event{CallID: r.callID, At: s.UpdatedAt, Channel: "video", Status: s.Video}); err != nil {
			return err
		}
		r.video = s.Video
	}
	if s.Audio != r.audio {
		if err := r.store.AddEvent(ctx, Event{CallID: r.callID, At: s.UpdatedAt, Channel: "audio", Status: s.Audio}); err != nil {
			return err
		}
		r.audio = s.Audio
	}
	return nil
}

// Close ends an ongoing call at the given time.
func (r *Recorder) Close(at time.Time) error {
	if r.callID == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	id := r.callID
	r.callID = ""
	return r.store.EndCall(ctx, id, at)
}
