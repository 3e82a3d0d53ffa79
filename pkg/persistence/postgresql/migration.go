package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Archived execution graphs, one row per execution
			CREATE TABLE execution_graphs (
				execution_id VARCHAR(255) PRIMARY KEY,
				graph_name VARCHAR(255) NOT NULL DEFAULT '',
				status VARCHAR(50) NOT NULL,
				graph JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_execution_graphs_status ON execution_graphs(status);
			CREATE INDEX idx_execution_graphs_updated_at ON execution_graphs(updated_at);
		`,
		2: `
			-- Failure summary of terminal graphs, queried without decoding the document
			ALTER TABLE execution_graphs
				ADD COLUMN failure_code VARCHAR(255),
				ADD COLUMN failure_message TEXT;
		`,
	}
}
