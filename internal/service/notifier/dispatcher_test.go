package notifier

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	domain "github.com/oshokin/task-alarm/internal/domain/alarm"
)

// recordingDisplayer remembers every notification and returns err.
type recordingDisplayer struct {
	mu    sync.Mutex
	shown []Notification
	err   error
}

func (r *recordingDisplayer) Display(_ context.Context, notification Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.shown = append(r.shown, notification)

	return r.err
}

// countingSink counts denied notifications and keeps the last subscriber count.
type countingSink struct {
	noopSink

	denied      int
	subscribers int
}

func (c *countingSink) NotificationDenied()         { c.denied++ }
func (c *countingSink) SubscribersUpdate(count int) { c.subscribers = count }

func TestTaskNotificationTexts(t *testing.T) {
	t.Parallel()

	normal := TaskNotification(DefaultTitle, "t1", "Write report", false)
	require.Equal(t, "task:t1", normal.Tag)
	require.Equal(t, "Task Alarm", normal.Title)
	require.Equal(t, "Task finished: Write report", normal.Body)
	require.Equal(t, []string{domain.ActionMarkDone, domain.ActionSnooze}, actionIDs(normal))
	require.False(t, normal.RequireInteraction)

	overdue := TaskNotification(DefaultTitle, "t1", "Write report", true)
	require.Equal(t, "Task overdue: Write report", overdue.Body)
	require.True(t, overdue.Overdue)
}

func TestDepartureNotificationTexts(t *testing.T) {
	t.Parallel()

	normal := DepartureNotification(DefaultTitle, "08:15", 10, false)
	require.Equal(t, domain.DepartureKey, normal.Tag)
	require.Equal(t, "Time to go! Departure at 08:15 (in 10 min)", normal.Body)
	require.Equal(t, []int{100, 50, 100}, normal.Vibrate)
	require.True(t, normal.RequireInteraction)
	require.Equal(t, []string{domain.ActionGotIt, domain.ActionSnooze5}, actionIDs(normal))

	overdue := DepartureNotification(DefaultTitle, "08:15", 10, true)
	require.Equal(t, "You should already be on your way! Departure at 08:15 (alarm was 10 min before)", overdue.Body)

	onTime := DepartureNotification(DefaultTitle, "08:15", 0, false)
	require.Equal(t, "Time to go! Departure at 08:15 (now)", onTime.Body)

	// Each notification owns its vibrate slice.
	normal.Vibrate[0] = 1
	require.Equal(t, 100, DepartureNotification(DefaultTitle, "08:15", 10, false).Vibrate[0])
}

func TestShowTracksLatestPerTag(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	displayer := &recordingDisplayer{}
	d := NewDispatcher("", displayer, nil)

	require.NoError(t, d.ShowTaskNotification(ctx, "t1", "Write report", false))
	require.NoError(t, d.ShowTaskNotification(ctx, "t1", "Write report", true))
	require.NoError(t, d.ShowDepartureNotification(ctx, "08:15", 10, false))

	require.Len(t, displayer.shown, 3)

	latest, ok := d.Latest("task:t1")
	require.True(t, ok)
	require.Equal(t, "Task overdue: Write report", latest.Body)

	d.Forget("task:t1")

	_, ok = d.Latest("task:t1")
	require.False(t, ok)

	_, ok = d.Latest(domain.DepartureKey)
	require.True(t, ok)
}

func TestShowSwallowsDeniedNotification(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	sink := &countingSink{}
	d := NewDispatcher("Planner", &recordingDisplayer{err: deniedf("no display")}, sink)

	require.NoError(t, d.ShowTaskNotification(ctx, "t1", "Read", false))
	require.Equal(t, 1, sink.denied)

	latest, ok := d.Latest("task:t1")
	require.True(t, ok)
	require.Equal(t, "Planner", latest.Title)

	boom := errors.New("boom")
	d = NewDispatcher("", &recordingDisplayer{err: boom}, sink)
	require.ErrorIs(t, d.ShowDepartureNotification(ctx, "08:00", 5, false), boom)
}

func TestBroadcastReachesEverySubscriber(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	sink := &countingSink{}
	d := NewDispatcher("", nil, sink)

	first := d.Subscribe(4)
	second := d.Subscribe(4)
	require.Equal(t, 2, d.SubscriberCount())
	require.Equal(t, 2, sink.subscribers)

	event := domain.NewEvent(domain.EventTaskAlarm, time.Now())
	require.Equal(t, 2, d.Broadcast(ctx, event))

	require.Same(t, event, <-first.Events())
	require.Same(t, event, <-second.Events())

	first.Close()
	first.Close()
	require.Equal(t, 1, d.SubscriberCount())

	_, open := <-first.Events()
	require.False(t, open)

	require.Equal(t, 1, d.Broadcast(ctx, domain.NewEvent(domain.EventAck, time.Now())))
}

func TestBroadcastDropsSlowSubscriber(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	d := NewDispatcher("", nil, nil)

	slow := d.Subscribe(1)
	fast := d.Subscribe(8)

	require.Equal(t, 2, d.Broadcast(ctx, domain.NewEvent(domain.EventTaskAlarm, time.Now())))
	require.Equal(t, 1, d.Broadcast(ctx, domain.NewEvent(domain.EventDepartureAlarm, time.Now())))

	select {
	case <-slow.Done():
	default:
		t.Fatal("slow subscriber was not dropped")
	}

	// The buffered event stays readable after the drop.
	event, ok := <-slow.Events()
	require.True(t, ok)
	require.Equal(t, domain.EventTaskAlarm, event.Type)

	_, ok = <-slow.Events()
	require.False(t, ok)

	require.Len(t, fast.Events(), 2)
	require.Equal(t, 1, d.SubscriberCount())
}

func TestCloseEndsSubscriptions(t *testing.T) {
	t.Parallel()

	d := NewDispatcher("", nil, nil)
	sub := d.Subscribe(0)
	require.Equal(t, DefaultSubscriberBuffer, cap(sub.Events()))

	d.Close()
	<-sub.Done()
	require.Zero(t, d.SubscriberCount())

	late := d.Subscribe(1)
	<-late.Done()
	require.Zero(t, d.SubscriberCount())
	require.Zero(t, d.Broadcast(context.Background(), domain.NewEvent(domain.EventAck, time.Now())))
}

func actionIDs(notification Notification) []string {
	ids := make([]string, 0, len(notification.Actions))
	for _, action := range notification.Actions {
		ids = append(ids, action.ID)
	}

	return ids
}
