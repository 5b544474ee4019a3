package database

import (
	"database/sql"
	"fmt"
	"log"
	"sort"

	sq "github.com/Masterminds/squirrel"
	"github.com/facette/natsort"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// Querier abstracts *sql.DB / *sql.Tx for the catalog queries
type Querier interface {
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
	Exec(query string, args ...interface{}) (sql.Result, error)
}

// ProjectSummary is one row of the project list views
type ProjectSummary struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	CreatedAt  int64  `json:"created_at"` // earliest image timestamp in the group
	ImageCount int    `json:"image_count"`
}

// ImageFilter selects images visible to a user within a project scope.
// Status and CreatedBy are optional; Sort is one of the Sort* constants.
type ImageFilter struct {
	ProjectID string
	UserID    string
	Status    string
	CreatedBy string
	Sort      string
}

// visibilityScope limits rows to the user's working set: images assigned to
// them inside the project, plus everything they uploaded themselves.
func visibilityScope(projectID, userID string) sq.Or {
	return sq.Or{
		sq.And{
			sq.Eq{"project_id": projectID},
			sq.Eq{"assigned_by": userID},
		},
		sq.Eq{"created_by": userID},
	}
}

func scanProjectSummaries(rows *sql.Rows) ([]ProjectSummary, error) {
	defer rows.Close()
	var projects []ProjectSummary
	for rows.Next() {
		var p ProjectSummary
		if err := rows.Scan(&p.Name, &p.ID, &p.CreatedAt, &p.ImageCount); err != nil {
			return nil, fmt.Errorf("failed to scan project summary: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// ListMyProjects groups the user's own uploads by (project_name, project_id),
// newest group first. Query failures log and return an empty list; callers
// cannot distinguish "no data" from failure at this layer.
func ListMyProjects(db Querier, userID string) []ProjectSummary {
	queryBuilder := psql.Select(
		"project_name", "project_id", "MIN(created_at)", "COUNT(*)",
	).From("metadata").
		Where(sq.Eq{"created_by": userID}).
		GroupBy("project_name", "project_id").
		OrderBy("MIN(created_at) DESC")

	sqlStr, args, err := queryBuilder.ToSql()
	if err != nil {
		log.Printf("catalog: failed to build ListMyProjects query: %v", err)
		return []ProjectSummary{}
	}

	rows, err := db.Query(sqlStr, args...)
	if err != nil {
		log.Printf("catalog: ListMyProjects query failed for %s: %v", userID, err)
		return []ProjectSummary{}
	}

	projects, err := scanProjectSummaries(rows)
	if err != nil {
		log.Printf("catalog: ListMyProjects scan failed for %s: %v", userID, err)
		return []ProjectSummary{}
	}
	if projects == nil {
		projects = []ProjectSummary{}
	}
	return projects
}

// ListSharedProjects returns project groups where the user is the current
// assignee on images uploaded by someone else.
func ListSharedProjects(db Querier, userID string) []ProjectSummary {
	queryBuilder := psql.Select(
		"project_name", "project_id", "MIN(created_at)", "COUNT(*)",
	).From("metadata").
		Where(sq.And{
			sq.Eq{"assigned_by": userID},
			sq.NotEq{"created_by": userID},
		}).
		GroupBy("project_name", "project_id").
		OrderBy("MIN(created_at) DESC")

	sqlStr, args, err := queryBuilder.ToSql()
	if err != nil {
		log.Printf("catalog: failed to build ListSharedProjects query: %v", err)
		return []ProjectSummary{}
	}

	rows, err := db.Query(sqlStr, args...)
	if err != nil {
		log.Printf("catalog: ListSharedProjects query failed for %s: %v", userID, err)
		return []ProjectSummary{}
	}

	projects, err := scanProjectSummaries(rows)
	if err != nil {
		log.Printf("catalog: ListSharedProjects scan failed for %s: %v", userID, err)
		return []ProjectSummary{}
	}
	if projects == nil {
		projects = []ProjectSummary{}
	}
	return projects
}

// ProjectNameExists reports whether the user already has a project with the
// given name. Errs on the side of true so creation is blocked on failure.
func ProjectNameExists(db Querier, name, userID string) bool {
	queryBuilder := psql.Select("COUNT(*)").
		From("metadata").
		Where(sq.Eq{"project_name": name, "created_by": userID})

	sqlStr, args, err := queryBuilder.ToSql()
	if err != nil {
		log.Printf("catalog: failed to build ProjectNameExists query: %v", err)
		return true
	}

	var count int
	if err := db.QueryRow(sqlStr, args...).Scan(&count); err != nil {
		log.Printf("catalog: ProjectNameExists query failed for %s/%s: %v", userID, name, err)
		return true
	}
	return count > 0
}

// FilteredImages returns the ordered storage paths matching the filter.
func FilteredImages(db Querier, f ImageFilter) []string {
	queryBuilder := psql.Select("filename", "storage_path").
		From("metadata").
		Where(visibilityScope(f.ProjectID, f.UserID))

	if f.Status != "" {
		queryBuilder = queryBuilder.Where(sq.Eq{"status": f.Status})
	}
	if f.CreatedBy != "" {
		queryBuilder = queryBuilder.Where(sq.Eq{"created_by": f.CreatedBy})
	}

	natural := false
	switch f.Sort {
	case SortDateAsc:
		queryBuilder = queryBuilder.OrderBy("last_modified_at ASC")
	case SortFilenameAsc:
		queryBuilder = queryBuilder.OrderBy("filename ASC")
	case SortFilenameNat:
		natural = true
	case SortStatusAsc:
		queryBuilder = queryBuilder.OrderBy("status ASC")
	default: // SortDateDesc
		queryBuilder = queryBuilder.OrderBy("last_modified_at DESC")
	}

	sqlStr, args, err := queryBuilder.ToSql()
	if err != nil {
		log.Printf("catalog: failed to build FilteredImages query: %v", err)
		return []string{}
	}

	rows, err := db.Query(sqlStr, args...)
	if err != nil {
		log.Printf("catalog: FilteredImages query failed: %v", err)
		return []string{}
	}
	defer rows.Close()

	type entry struct {
		filename    string
		storagePath string
	}
	var entries []entry
	for rows.Next() {
		var e entry
		if err := rows.Scan(&e.filename, &e.storagePath); err != nil {
			log.Printf("catalog: FilteredImages scan failed: %v", err)
			return []string{}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		log.Printf("catalog: FilteredImages rows error: %v", err)
		return []string{}
	}

	if natural {
		names := make([]string, len(entries))
		byName := make(map[string][]string, len(entries))
		for i, e := range entries {
			names[i] = e.filename
			byName[e.filename] = append(byName[e.filename], e.storagePath)
		}
		natsort.Sort(names)
		paths := make([]string, 0, len(entries))
		seen := make(map[string]int, len(byName))
		for _, n := range names {
			paths = append(paths, byName[n][seen[n]])
			seen[n]++
		}
		return paths
	}

	paths := make([]string, len(entries))
	for i, e := range entries {
		paths[i] = e.storagePath
	}
	return paths
}

// PathsByStatus returns the storage paths of the user's working set in a
// single status within the project.
func PathsByStatus(db Querier, projectID, userID, status string) []string {
	queryBuilder := psql.Select("storage_path").
		From("metadata").
		Where(sq.Eq{"status": status}).
		Where(visibilityScope(projectID, userID))

	sqlStr, args, err := queryBuilder.ToSql()
	if err != nil {
		log.Printf("catalog: failed to build PathsByStatus query: %v", err)
		return []string{}
	}

	rows, err := db.Query(sqlStr, args...)
	if err != nil {
		log.Printf("catalog: PathsByStatus query failed for status %s: %v", status, err)
		return []string{}
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			log.Printf("catalog: PathsByStatus scan failed: %v", err)
			return []string{}
		}
		paths = append(paths, p)
	}
	if err := rows.Err(); err != nil {
		log.Printf("catalog: PathsByStatus rows error: %v", err)
		return []string{}
	}
	if paths == nil {
		paths = []string{}
	}
	return paths
}

// StatusCounts returns image counts per status for the user's working set.
// Statuses with no images are absent from the map.
func StatusCounts(db Querier, projectID, userID string) map[string]int {
	queryBuilder := psql.Select("status", "COUNT(*)").
		From("metadata").
		Where(visibilityScope(projectID, userID)).
		GroupBy("status")

	sqlStr, args, err := queryBuilder.ToSql()
	if err != nil {
		log.Printf("catalog: failed to build StatusCounts query: %v", err)
		return map[string]int{}
	}

	rows, err := db.Query(sqlStr, args...)
	if err != nil {
		log.Printf("catalog: StatusCounts query failed: %v", err)
		return map[string]int{}
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			log.Printf("catalog: StatusCounts scan failed: %v", err)
			return map[string]int{}
		}
		counts[status] = count
	}
	if err := rows.Err(); err != nil {
		log.Printf("catalog: StatusCounts rows error: %v", err)
		return map[string]int{}
	}
	return counts
}

// UsersWithUploads returns the distinct uploader ids visible in a project,
// sorted for stable presentation in filter dropdowns.
func UsersWithUploads(db Querier, projectID string) []string {
	queryBuilder := psql.Select("DISTINCT created_by").
		From("metadata").
		Where(sq.Eq{"project_id": projectID})

	sqlStr, args, err := queryBuilder.ToSql()
	if err != nil {
		log.Printf("catalog: failed to build UsersWithUploads query: %v", err)
		return []string{}
	}

	rows, err := db.Query(sqlStr, args...)
	if err != nil {
		log.Printf("catalog: UsersWithUploads query failed: %v", err)
		return []string{}
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			log.Printf("catalog: UsersWithUploads scan failed: %v", err)
			return []string{}
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		log.Printf("catalog: UsersWithUploads rows error: %v", err)
		return []string{}
	}
	sort.Strings(users)
	if users == nil {
		users = []string{}
	}
	return users
}
