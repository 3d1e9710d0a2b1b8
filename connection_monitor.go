package dbrecord

import (
	"context"
	"sync"
	"time"
)

// DBPinger 定义连接检查接口，便于测试
type DBPinger interface {
	PingContext(ctx context.Context) error
}

// ConnectionMonitor periodically pings a pool and logs when its health changes.
// After a failure it checks more often until the pool recovers.
type ConnectionMonitor struct {
	pinger         DBPinger
	name           string
	normalInterval time.Duration
	errorInterval  time.Duration
	pingTimeout    time.Duration

	mu          sync.Mutex
	stopCh      chan struct{}
	running     bool
	lastHealthy bool
}

func newConnectionMonitor(pinger DBPinger, name string, interval time.Duration) *ConnectionMonitor {
	errInterval := interval / 5
	if errInterval < time.Second {
		errInterval = time.Second
	}
	if errInterval > interval {
		errInterval = interval
	}
	return &ConnectionMonitor{
		pinger:         pinger,
		name:           name,
		normalInterval: interval,
		errorInterval:  errInterval,
		pingTimeout:    3 * time.Second,
		stopCh:         make(chan struct{}),
		lastHealthy:    true,
	}
}

// Start 启动监控 goroutine，重复调用无效
func (cm *ConnectionMonitor) Start() {
	if cm == nil {
		return
	}
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.running {
		return
	}
	cm.running = true
	cm.stopCh = make(chan struct{})
	go cm.run(cm.stopCh)
}

// Stop 停止连接监控器
func (cm *ConnectionMonitor) Stop() {
	if cm == nil {
		return
	}
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if !cm.running {
		return
	}
	cm.running = false
	close(cm.stopCh)
}

// Healthy returns the result of the last check
func (cm *ConnectionMonitor) Healthy() bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.lastHealthy
}

func (cm *ConnectionMonitor) run(stopCh chan struct{}) {
	interval := cm.normalInterval
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-timer.C:
			if cm.checkConnection() {
				interval = cm.normalInterval
			} else {
				interval = cm.errorInterval
			}
			timer.Reset(interval)
		}
	}
}

// checkConnection 检查连接状态，只在状态变化时记录日志
func (cm *ConnectionMonitor) checkConnection() bool {
	ctx, cancel := context.WithTimeout(context.Background(), cm.pingTimeout)
	defer cancel()

	err := cm.pinger.PingContext(ctx)
	healthy := err == nil

	cm.mu.Lock()
	changed := cm.lastHealthy != healthy
	cm.lastHealthy = healthy
	cm.mu.Unlock()

	if changed {
		if healthy {
			LogInfo("database connection recovered", map[string]interface{}{"database": cm.name})
		} else {
			LogError("database connection lost", map[string]interface{}{"database": cm.name, "error": err.Error()})
		}
	}
	return healthy
}
