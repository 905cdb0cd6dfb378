package topology

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/nethalo/utf8mb4-convert/internal/mysql"
)

// Type represents the detected MySQL topology.
type Type string

const (
	Standalone      Type = "standalone"
	AsyncReplica    Type = "async-replica"
	SemiSyncReplica Type = "semisync-replica"
	Galera          Type = "galera"
	GroupRepl       Type = "group-replication"
)

// Info holds the topology facts that matter when running DDL.
type Info struct {
	Type Type

	// Replication (async/semisync)
	IsReplica      bool
	IsPrimary      bool // has replicas attached
	ReplicaLagSecs *int64

	// Galera / PXC
	GaleraClusterSize int
	GaleraNodeState   string // Synced, Donor, Desynced, etc.
	GaleraOSUMethod   string // TOI or RSU

	// Group Replication
	GRMode        string // SINGLE-PRIMARY or MULTI-PRIMARY
	GRMemberCount int
}

// Detect determines the topology. Detection is best effort: a probe that
// fails for lack of privileges is treated as "not this topology".
func Detect(ctx context.Context, db *sql.DB) *Info {
	info := &Info{Type: Standalone}

	// Try Galera detection first (most specific)
	if detectGalera(ctx, db, info) {
		return info
	}
	if detectGroupReplication(ctx, db, info) {
		return info
	}
	detectReplication(ctx, db, info)
	return info
}

func detectGalera(ctx context.Context, db *sql.DB, info *Info) bool {
	clusterSize, err := mysql.GetVariable(ctx, db, "wsrep_cluster_size")
	if err != nil || clusterSize == "" {
		clusterSize, err = mysql.GetStatus(ctx, db, "wsrep_cluster_size")
		if err != nil || clusterSize == "" {
			return false
		}
	}
	size, _ := strconv.Atoi(clusterSize)
	if size == 0 {
		return false
	}

	info.Type = Galera
	info.GaleraClusterSize = size
	info.GaleraNodeState, _ = mysql.GetStatus(ctx, db, "wsrep_local_state_comment")
	info.GaleraOSUMethod, _ = mysql.GetVariable(ctx, db, "wsrep_OSU_method")
	return true
}

func detectGroupReplication(ctx context.Context, db *sql.DB, info *Info) bool {
	name, err := mysql.GetVariable(ctx, db, "group_replication_group_name")
	if err != nil || name == "" {
		return false
	}

	info.Type = GroupRepl
	singlePrimary, _ := mysql.GetVariable(ctx, db, "group_replication_single_primary_mode")
	if singlePrimary == "ON" {
		info.GRMode = "SINGLE-PRIMARY"
	} else {
		info.GRMode = "MULTI-PRIMARY"
	}

	var count int
	err = db.QueryRowContext(ctx, `SELECT COUNT(*) FROM performance_schema.replication_group_members WHERE MEMBER_STATE = 'ONLINE'`).Scan(&count)
	if err == nil {
		info.GRMemberCount = count
	}
	return true
}

func detectReplication(ctx context.Context, db *sql.DB, info *Info) {
	rows, err := db.QueryContext(ctx, "SHOW REPLICA STATUS")
	if err != nil {
		// Try older syntax
		rows, err = db.QueryContext(ctx, "SHOW SLAVE STATUS")
	}
	if err == nil {
		if rows.Next() {
			info.IsReplica = true
			info.ReplicaLagSecs = scanLag(rows)
		}
		// Release the connection before the next probe; the pool may hold only one.
		rows.Close()
	}

	var replCount int
	err = db.QueryRowContext(ctx, "SELECT COUNT(*) FROM information_schema.PROCESSLIST WHERE COMMAND IN ('Binlog Dump', 'Binlog Dump GTID')").Scan(&replCount)
	if err == nil && replCount > 0 {
		info.IsPrimary = true
	}

	if !info.IsReplica && !info.IsPrimary {
		return
	}
	semiSync, _ := mysql.GetVariable(ctx, db, "rpl_semi_sync_source_enabled")
	if semiSync == "" {
		semiSync, _ = mysql.GetVariable(ctx, db, "rpl_semi_sync_master_enabled")
	}
	if semiSync == "ON" {
		info.Type = SemiSyncReplica
	} else {
		info.Type = AsyncReplica
	}
}

// scanLag reads Seconds_Behind_Source (or _Master) from the current row.
func scanLag(rows *sql.Rows) *int64 {
	cols, err := rows.Columns()
	if err != nil {
		return nil
	}
	values := make([]sql.NullString, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil
	}
	for i, col := range cols {
		if (col == "Seconds_Behind_Source" || col == "Seconds_Behind_Master") && values[i].Valid {
			lag, err := strconv.ParseInt(values[i].String, 10, 64)
			if err == nil {
				return &lag
			}
		}
	}
	return nil
}

// Warnings describes what running the conversion DDL on this server implies.
func (i *Info) Warnings() []string {
	var out []string
	switch i.Type {
	case Galera:
		switch i.GaleraOSUMethod {
		case "RSU":
			out = append(out, "wsrep_OSU_method=RSU: statements apply to this node only; repeat the conversion on every node")
		default:
			out = append(out, fmt.Sprintf("Galera TOI: each ALTER blocks writes on all %d nodes while it runs", i.GaleraClusterSize))
		}
		if i.GaleraNodeState != "" && i.GaleraNodeState != "Synced" {
			out = append(out, fmt.Sprintf("Galera node state is %s, not Synced", i.GaleraNodeState))
		}
	case GroupRepl:
		if i.GRMode == "MULTI-PRIMARY" {
			out = append(out, "multi-primary Group Replication: concurrent writes to tables being altered on other members can fail certification")
		}
	}
	if i.IsReplica {
		msg := "server is a replica: running DDL here diverges it from its source; convert on the source instead"
		if i.ReplicaLagSecs != nil {
			msg += fmt.Sprintf(" (lag %ds)", *i.ReplicaLagSecs)
		}
		out = append(out, msg)
	}
	if i.IsPrimary {
		out = append(out, "server has replicas attached: each ALTER replays on them and can cause replication lag")
	}
	return out
}
