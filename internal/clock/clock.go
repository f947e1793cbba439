// Package clock 提供引擎时间源。实盘使用系统时间，回测使用手动推进的测试时钟，
// 保证同一份数据回放得到完全一致的时间序列。
package clock

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// TimeEvent 定时器到期事件
type TimeEvent struct {
	Name    string    `json:"name"`
	TsEvent time.Time `json:"ts_event"`
}

// TimerHandler 定时器回调
type TimerHandler func(TimeEvent)

// Clock 引擎时间源
type Clock interface {
	// Now 当前引擎时间
	Now() time.Time
	// SetTimer 注册一个在 alertTime 到期的命名定时器，名字重复返回错误
	SetTimer(name string, alertTime time.Time, handler TimerHandler) error
	// SetRepeatingTimer 注册从 firstAlert 起每 interval 重复触发的命名定时器，
	// 触发后自动续期，直到 CancelTimer
	SetRepeatingTimer(name string, firstAlert time.Time, interval time.Duration, handler TimerHandler) error
	// CancelTimer 取消命名定时器
	CancelTimer(name string)
	// TimerNames 当前活跃的定时器名，按名字排序
	TimerNames() []string
}

// LiveClock 实盘时钟，直接使用系统时间
type LiveClock struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewLiveClock 构造实盘时钟
func NewLiveClock() *LiveClock {
	return &LiveClock{timers: make(map[string]*time.Timer)}
}

func (c *LiveClock) Now() time.Time { return time.Now().UTC() }

func (c *LiveClock) SetTimer(name string, alertTime time.Time, handler TimerHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.timers[name]; ok {
		return fmt.Errorf("timer %q already exists", name)
	}
	c.arm(name, alertTime, 0, handler)
	return nil
}

func (c *LiveClock) SetRepeatingTimer(name string, firstAlert time.Time, interval time.Duration, handler TimerHandler) error {
	if interval <= 0 {
		return fmt.Errorf("timer %q interval must be positive", name)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.timers[name]; ok {
		return fmt.Errorf("timer %q already exists", name)
	}
	c.arm(name, firstAlert, interval, handler)
	return nil
}

// arm 必须持锁调用。interval > 0 的定时器触发后按 alertTime+interval 续期
func (c *LiveClock) arm(name string, alertTime time.Time, interval time.Duration, handler TimerHandler) {
	d := time.Until(alertTime)
	if d < 0 {
		d = 0
	}
	c.timers[name] = time.AfterFunc(d, func() {
		c.mu.Lock()
		if _, ok := c.timers[name]; !ok {
			// 触发与取消竞争，取消胜出
			c.mu.Unlock()
			return
		}
		if interval > 0 {
			c.arm(name, alertTime.Add(interval), interval, handler)
		} else {
			delete(c.timers, name)
		}
		c.mu.Unlock()
		handler(TimeEvent{Name: name, TsEvent: alertTime})
	})
}

func (c *LiveClock) CancelTimer(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.timers[name]; ok {
		t.Stop()
		delete(c.timers, name)
	}
}

func (c *LiveClock) TimerNames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.timers))
	for n := range c.timers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

type testTimer struct {
	name      string
	alertTime time.Time
	interval  time.Duration // 0 表示一次性
	handler   TimerHandler
}

// TestClock 回测时钟。时间只能通过 SetTime/Advance 显式推进，
// Advance 会按到期时间顺序触发区间内的全部定时器。
type TestClock struct {
	mu     sync.Mutex
	now    time.Time
	timers map[string]*testTimer
}

// NewTestClock 构造回测时钟，初始时间为 start
func NewTestClock(start time.Time) *TestClock {
	return &TestClock{now: start.UTC(), timers: make(map[string]*testTimer)}
}

func (c *TestClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// SetTime 直接设置当前时间，不触发定时器
func (c *TestClock) SetTime(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t.UTC()
}

func (c *TestClock) SetTimer(name string, alertTime time.Time, handler TimerHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.timers[name]; ok {
		return fmt.Errorf("timer %q already exists", name)
	}
	c.timers[name] = &testTimer{name: name, alertTime: alertTime.UTC(), handler: handler}
	return nil
}

func (c *TestClock) SetRepeatingTimer(name string, firstAlert time.Time, interval time.Duration, handler TimerHandler) error {
	if interval <= 0 {
		return fmt.Errorf("timer %q interval must be positive", name)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.timers[name]; ok {
		return fmt.Errorf("timer %q already exists", name)
	}
	c.timers[name] = &testTimer{name: name, alertTime: firstAlert.UTC(), interval: interval, handler: handler}
	return nil
}

func (c *TestClock) CancelTimer(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.timers, name)
}

func (c *TestClock) TimerNames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.timers))
	for n := range c.timers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Advance 将时间推进到 to，按 (到期时间, 名字) 顺序逐个触发区间内到期的定时器
// 并返回触发的事件。重复定时器触发后按 interval 续期，落在区间内的每次到期都触发。
// 回调在锁外执行，回调里可以再注册或取消定时器。
func (c *TestClock) Advance(to time.Time) []TimeEvent {
	to = to.UTC()
	var events []TimeEvent
	for {
		c.mu.Lock()
		var next *testTimer
		for _, t := range c.timers {
			if t.alertTime.After(to) {
				continue
			}
			if next == nil || t.alertTime.Before(next.alertTime) ||
				(t.alertTime.Equal(next.alertTime) && t.name < next.name) {
				next = t
			}
		}
		if next == nil {
			c.now = to
			c.mu.Unlock()
			return events
		}
		ev := TimeEvent{Name: next.name, TsEvent: next.alertTime}
		if next.interval > 0 {
			next.alertTime = next.alertTime.Add(next.interval)
		} else {
			delete(c.timers, next.name)
		}
		if c.now.Before(ev.TsEvent) {
			c.now = ev.TsEvent
		}
		handler := next.handler
		c.mu.Unlock()
		handler(ev)
		events = append(events, ev)
	}
}
