package db

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

var database *sql.DB

var ErrNotInitialized = errors.New("database not initialized")

// InitDB opens the SQLite training ledger and creates its schema
func InitDB(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return err
	}

	query := `
    CREATE TABLE IF NOT EXISTS training_log (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        model_name VARCHAR(50) NOT NULL,
        artifact_path TEXT NOT NULL,
        accuracy REAL,
        precision REAL,
        recall REAL,
        trained_at DATETIME NOT NULL,
        data_points INTEGER,
        test_points INTEGER
    );
    CREATE INDEX IF NOT EXISTS idx_training_log_trained_at ON training_log(trained_at);
    `

	if _, err := db.Exec(query); err != nil {
		db.Close()
		return err
	}
	if database != nil {
		database.Close()
	}
	database = db
	return nil
}

// Close releases the ledger; later calls fail with ErrNotInitialized.
func Close() error {
	if database == nil {
		return nil
	}
	err := database.Close()
	database = nil
	return err
}

type TrainingLog struct {
	ModelName    string    `json:"model_name"`
	ArtifactPath string    `json:"artifact_path"`
	Accuracy     float64   `json:"accuracy"`
	Precision    float64   `json:"precision"`
	Recall       float64   `json:"recall"`
	TrainedAt    time.Time `json:"trained_at"`
	DataPoints   int       `json:"data_points"`
	TestPoints   int       `json:"test_points"`
}

func SaveTrainingLog(log TrainingLog) error {
	if database == nil {
		return ErrNotInitialized
	}
	if log.TrainedAt.IsZero() {
		log.TrainedAt = time.Now().UTC()
	}
	_, err := database.Exec(`
        INSERT INTO training_log (
            model_name, artifact_path, accuracy, precision, recall,
            trained_at, data_points, test_points
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
    `,
		log.ModelName,
		log.ArtifactPath,
		log.Accuracy,
		log.Precision,
		log.Recall,
		log.TrainedAt,
		log.DataPoints,
		log.TestPoints,
	)
	return err
}

// LoadTrainingLog returns up to limit runs, newest first. limit <= 0 returns all.
func LoadTrainingLog(limit int) ([]TrainingLog, error) {
	if database == nil {
		return nil, ErrNotInitialized
	}
	if limit <= 0 {
		limit = -1
	}
	rows, err := database.Query(`
        SELECT model_name, artifact_path, accuracy, precision, recall,
               trained_at, data_points, test_points
        FROM training_log
        ORDER BY trained_at DESC, id DESC
        LIMIT ?
    `, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]TrainingLog, 0)
	for rows.Next() {
		var log TrainingLog
		if err := rows.Scan(&log.ModelName, &log.ArtifactPath, &log.Accuracy, &log.Precision, &log.Recall,
			&log.TrainedAt, &log.DataPoints, &log.TestPoints); err != nil {
			return nil, err
		}
		logs = append(logs, log)
	}
	return logs, rows.Err()
}
