package repo

import (
	"context"
	"database/sql"

	"github.com/madaldho/designflow-app-sub000/internal/domain"
)

const userCols = `id,name,email,role,COALESCE(institution_id,''),active,created_at`

func scanUser(scan func(dest ...any) error) (domain.User, error) {
	var u domain.User
	err := scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.InstitutionID, &u.Active, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return u, ErrNotFound
	}
	return u, err
}

func (r Repo) InsertUserTx(ctx context.Context, tx *sql.Tx, u domain.User) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO users (id, name, email, role, institution_id, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, string(u.Role), nullable(u.InstitutionID), u.Active, u.CreatedAt)
	return err
}

func (r Repo) InsertUser(ctx context.Context, u domain.User) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO users(id,name,email,role,institution_id,active,created_at) VALUES (?,?,?,?,?,?,?)`,
		u.ID, u.Name, u.Email, u.Role, nullable(u.InstitutionID), u.Active, u.CreatedAt)
	return err
}

func (r Repo) GetUser(ctx context.Context, id string) (domain.User, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE id=?`, id)
	return scanUser(row.Scan)
}

func (r Repo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE email=?`, email)
	return scanUser(row.Scan)
}

func (r Repo) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+userCols+` FROM users ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.User
	for rows.Next() {
		u, err := scanUser(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

func (r Repo) UpdateUserRoleTx(ctx context.Context, tx *sql.Tx, id string, role domain.Role) error {
	res, err := tx.ExecContext(ctx, `UPDATE users SET role=? WHERE id=?`, role, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) SetUserActiveTx(ctx context.Context, tx *sql.Tx, id string, active bool) error {
	res, err := tx.ExecContext(ctx, `UPDATE users SET active=? WHERE id=?`, active, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) UpdateUserRole(ctx context.Context, id string, role domain.Role) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE users SET role=? WHERE id=?`, role, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) SetUserActive(ctx context.Context, id string, active bool) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE users SET active=? WHERE id=?`, active, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) InsertInstitutionTx(ctx context.Context, tx *sql.Tx, inst domain.Institution) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO institutions(id,name,phone,address,created_at) VALUES (?,?,?,?,?)`,
		inst.ID, inst.Name, nullable(inst.Phone), nullable(inst.Address), inst.CreatedAt)
	return err
}

func (r Repo) InsertInstitution(ctx context.Context, inst domain.Institution) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO institutions(id,name,phone,address,created_at) VALUES (?,?,?,?,?)`,
		inst.ID, inst.Name, nullable(inst.Phone), nullable(inst.Address), inst.CreatedAt)
	return err
}

func (r Repo) GetInstitution(ctx context.Context, id string) (domain.Institution, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT id,name,COALESCE(phone,''),COALESCE(address,''),created_at FROM institutions WHERE id=?`, id)
	var inst domain.Institution
	err := row.Scan(&inst.ID, &inst.Name, &inst.Phone, &inst.Address, &inst.CreatedAt)
	if err == sql.ErrNoRows {
		return inst, ErrNotFound
	}
	return inst, err
}

func (r Repo) ListInstitutions(ctx context.Context) ([]domain.Institution, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name,COALESCE(phone,''),COALESCE(address,''),created_at FROM institutions ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Institution
	for rows.Next() {
		var inst domain.Institution
		if err := rows.Scan(&inst.ID, &inst.Name, &inst.Phone, &inst.Address, &inst.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, inst)
	}
	return res, rows.Err()
}

func (r Repo) DeleteInstitution(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM institutions WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
