package mysql

// migrations maps schema versions to the SQL applied for each.
func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS workflows (
				id VARCHAR(64) PRIMARY KEY,
				user_id VARCHAR(64) NOT NULL,
				name VARCHAR(255) NOT NULL,
				description TEXT,
				trigger_type VARCHAR(32) NOT NULL,
				is_active BOOLEAN NOT NULL DEFAULT FALSE,
				created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			);

			CREATE TABLE IF NOT EXISTS steps (
				id VARCHAR(64) PRIMARY KEY,
				workflow_id VARCHAR(64) NOT NULL,
				position INT NOT NULL,
				type VARCHAR(64) NOT NULL,
				name VARCHAR(255) NOT NULL,
				config JSON,
				UNIQUE KEY uniq_steps_workflow_position (workflow_id, position),
				CONSTRAINT fk_steps_workflow FOREIGN KEY (workflow_id) REFERENCES workflows(id) ON DELETE CASCADE
			);

			CREATE TABLE IF NOT EXISTS executions (
				id VARCHAR(64) PRIMARY KEY,
				workflow_id VARCHAR(64) NOT NULL,
				status VARCHAR(32) NOT NULL,
				trigger_data JSON,
				error TEXT,
				started_at DATETIME NOT NULL,
				finished_at DATETIME,
				duration_ms BIGINT,
				INDEX idx_executions_workflow_id (workflow_id)
			);

			CREATE TABLE IF NOT EXISTS step_executions (
				id VARCHAR(64) PRIMARY KEY,
				execution_id VARCHAR(64) NOT NULL,
				step_id VARCHAR(64) NOT NULL,
				position INT NOT NULL,
				status VARCHAR(32) NOT NULL,
				input JSON,
				output JSON,
				error TEXT,
				started_at DATETIME,
				finished_at DATETIME,
				duration_ms BIGINT,
				INDEX idx_step_executions_execution_id (execution_id)
			);
		`,
	}
}
