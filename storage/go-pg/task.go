package gopg

import (
	"github.com/go-pg/pg"

	delivery "github.com/interactive-solutions/go-delivery"
)

func NewTaskRepository(db *pg.DB) delivery.TaskRepository {
	return &taskRepository{
		db: db,
	}
}

type taskWrapper struct {
	TableName struct{} `sql:"delivery_tasks, alias:dt" json:"-"`

	*delivery.Task
}

type taskRepository struct {
	db *pg.DB
}

func (repo *taskRepository) Create(task *delivery.Task) error {
	return repo.db.Insert(&taskWrapper{Task: task})
}

func (repo *taskRepository) Update(task *delivery.Task) error {
	return repo.db.Update(&taskWrapper{Task: task})
}

func (repo *taskRepository) GetPending() ([]delivery.Task, error) {
	var tasks []delivery.Task
	var wrappedTasks []taskWrapper

	// Dispatching rows are attempts interrupted by a crash; the scheduler
	// resets them to pending on restore.
	statuses := []delivery.TaskStatus{delivery.TaskPending, delivery.TaskDispatching}

	if err := repo.db.Model(&wrappedTasks).Where("status in (?)", pg.In(statuses)).Select(); err != nil {
		if err == pg.ErrNoRows {
			return tasks, nil
		}

		return tasks, err
	}

	for _, wrapped := range wrappedTasks {
		tasks = append(tasks, *wrapped.Task)
	}

	return tasks, nil
}
