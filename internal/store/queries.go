package store

// Schema shared by the postgres and SQL backends. The SQL backend uses ?
// placeholders, postgres uses $n.
const (
	tableDomains      = "domains"
	tableGroups       = "link_groups"
	tableRecords      = "records"
	tableGroupVisits  = "group_visits"
	tableRecordVisits = "record_visits"
)

type queries struct {
	groupIDForDomain   string
	activeRecord       string
	activeGlobalRecord string
	groupDefault       string
	systemDefault      string
	incrementGroup     string
	insertGroupVisit   string
	incrementRecord    string
	insertRecordVisit  string
}

func newQueries(p func(n int) string) queries {
	return queries{
		groupIDForDomain: `SELECT group_id FROM ` + tableDomains + ` WHERE name = ` + p(1),
		activeRecord: `SELECT record_id, link FROM ` + tableRecords +
			` WHERE is_active AND group_id = ` + p(1) + ` AND slug = ` + p(2) + ` ORDER BY record_id LIMIT 1`,
		activeGlobalRecord: `SELECT record_id, link FROM ` + tableRecords +
			` WHERE is_active AND group_id IS NULL AND slug = ` + p(1) + ` ORDER BY record_id LIMIT 1`,
		groupDefault: `SELECT group_id, default_link FROM ` + tableGroups + ` WHERE group_id = ` + p(1),
		systemDefault: `SELECT group_id, default_link FROM ` + tableGroups +
			` WHERE is_default ORDER BY group_id LIMIT 1`,
		incrementGroup: `UPDATE ` + tableGroups +
			` SET visits = visits + 1, latest_visit = ` + p(2) + ` WHERE group_id = ` + p(1),
		insertGroupVisit: `INSERT INTO ` + tableGroupVisits + ` (group_id, visited_at) VALUES (` + p(1) + `, ` + p(2) + `)`,
		incrementRecord: `UPDATE ` + tableRecords +
			` SET visits = visits + 1, latest_visit = ` + p(2) + ` WHERE record_id = ` + p(1),
		insertRecordVisit: `INSERT INTO ` + tableRecordVisits + ` (record_id, visited_at) VALUES (` + p(1) + `, ` + p(2) + `)`,
	}
}
