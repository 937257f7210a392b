package sql

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log"
)

//go:embed init.sql
var initSQL string

//go:embed pages.sql
var pagesSQL string

//go:embed sections.sql
var sectionsSQL string

//go:embed evidence.sql
var evidenceSQL string

//go:embed entities.sql
var entitiesSQL string

//go:embed embeddings.sql
var embeddingsSQL string

//go:embed eval.sql
var evalSQL string

// Function lists for verification
var PagesFunctions = []string{
	"init_pages",
	"insert_page",
	"update_page_content",
	"select_page_by_url",
	"select_pages_for_tenant",
	"delete_pages_for_tenant",
}

var SectionsFunctions = []string{
	"init_sections",
	"insert_section",
	"delete_sections_for_page",
	"select_section",
	"select_sections_by_ids",
	"select_sections_for_page",
	"select_section_hashes",
	"select_section_urls",
	"search_sections_lexical",
}

var EvidenceFunctions = []string{
	"init_evidence",
	"insert_evidence",
	"select_evidence",
	"select_evidence_for_section",
	"delete_evidence_for_tenant",
}

var EntitiesFunctions = []string{
	"init_entities",
	"upsert_entity",
	"select_entity",
	"select_entities_by_ids",
	"select_entity_names",
	"insert_entity_mention",
	"select_mentions_for_entity",
	"insert_relation",
	"select_relations_for_entity",
	"delete_entities_for_tenant",
}

var EmbeddingsFunctions = []string{
	"init_embeddings",
	"replace_content_embedding",
	"search_content_embeddings",
	"select_indexed_content",
	"replace_entity_embedding",
	"search_entity_embeddings",
	"upsert_corpus_version",
	"select_corpus_version",
	"delete_embeddings_for_tenant",
}

var EvalFunctions = []string{
	"init_eval",
	"insert_eval_run",
	"insert_eval_result",
	"select_eval_runs",
	"select_results_for_run",
	"insert_monitor_event",
	"select_monitor_events",
	"delete_eval_for_tenant",
}

// Init intializes db extensions
func Init(db *sql.DB) error {
	_, err := db.Exec(initSQL)
	if err != nil {
		return fmt.Errorf("error executing schema SQL: %w", err)
	}

	log.Println("Database extensions initialized successfully")
	return nil
}

// LoadPagesSql loads page-related SQL functions
func LoadPagesSql(db *sql.DB, force bool) error {
	return loadSQL(db, force, pagesSQL, PagesFunctions, "pages")
}

// LoadSectionsSql loads section-related SQL functions
func LoadSectionsSql(db *sql.DB, force bool) error {
	return loadSQL(db, force, sectionsSQL, SectionsFunctions, "sections")
}

// LoadEvidenceSql loads evidence-related SQL functions
func LoadEvidenceSql(db *sql.DB, force bool) error {
	return loadSQL(db, force, evidenceSQL, EvidenceFunctions, "evidence")
}

// LoadEntitiesSql loads entity-related SQL functions
func LoadEntitiesSql(db *sql.DB, force bool) error {
	return loadSQL(db, force, entitiesSQL, EntitiesFunctions, "entities")
}

// LoadEmbeddingsSql loads embedding-related SQL functions
func LoadEmbeddingsSql(db *sql.DB, force bool) error {
	return loadSQL(db, force, embeddingsSQL, EmbeddingsFunctions, "embeddings")
}

// LoadEvalSql loads eval- and monitoring-related SQL functions
func LoadEvalSql(db *sql.DB, force bool) error {
	return loadSQL(db, force, evalSQL, EvalFunctions, "eval")
}

func loadSQL(db *sql.DB, force bool, sqlText string, functions []string, name string) error {
	if !force {
		exist, err := checkFunctions(db, functions)
		if err != nil {
			return fmt.Errorf("error checking existing %v functions: %w", name, err)
		}
		if exist {
			return nil
		}
	}

	_, err := db.Exec(sqlText)
	if err != nil {
		return fmt.Errorf("error executing %v SQL: %w", name, err)
	}

	exist, err := checkFunctions(db, functions)
	if err != nil {
		return fmt.Errorf("error checking existing functions: %w", err)
	}
	if !exist {
		return fmt.Errorf("not all required %v SQL functions were created", name)
	}

	log.Printf("SQL %v functions loaded successfully", name)
	return nil
}

func checkFunctions(db *sql.DB, functions []string) (bool, error) {
	for _, funcName := range functions {
		var exists bool
		err := db.QueryRow(`SELECT EXISTS(SELECT 1 FROM pg_proc WHERE proname = $1);`, funcName).Scan(&exists)
		if err != nil {
			return false, err
		}
		if !exists {
			return false, nil
		}
	}
	return true, nil
}
