package tasks

import "github.com/prometheus/client_golang/prometheus"

var taskMutationsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "todo_task_mutations_total",
		Help: "Task mutations by action and outcome",
	},
	[]string{"action", "outcome"},
)

func init() {
	prometheus.MustRegister(taskMutationsTotal)
}

func recordMutation(action string, err error) {
	outcome := "success"
	if err != nil {
		outcome = KindOf(err).String()
	}
	taskMutationsTotal.WithLabelValues(action, outcome).Inc()
}
