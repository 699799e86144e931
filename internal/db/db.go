package db

import (
	"database/sql"
	"log"

	_ "github.com/go-sql-driver/mysql"
)

func InitDB(dbURL string) *sql.DB {
	db, err := sql.Open("mysql", dbURL)
	if err != nil {
		log.Fatal("failed to open database connection:", err)
	}

	err = db.Ping()
	if err != nil {
		log.Fatal("database is not responding:", err)
	}

	log.Println("connected to database")
	return db
}

func RunMigrations(db *sql.DB) {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INT AUTO_INCREMENT PRIMARY KEY,
			display_name VARCHAR(100),
			email VARCHAR(100) NOT NULL UNIQUE,
			email_verified BOOLEAN DEFAULT FALSE,
			photo_url VARCHAR(512),
			password_hash VARCHAR(255),
			provider VARCHAR(50) DEFAULT 'password',
			disabled BOOLEAN DEFAULT FALSE,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS favorites (
			user_id INT NOT NULL,
			product_id INT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (user_id, product_id),
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS newsletter_subscribers (
			id INT AUTO_INCREMENT PRIMARY KEY,
			email VARCHAR(100) NOT NULL UNIQUE,
			subscribed_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
	}

	for _, q := range queries {
		_, err := db.Exec(q)
		if err != nil {
			log.Fatal("migration failed:", err)
		}
	}
	log.Println("migrations complete")
}
