package market

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
)

var (
	// ErrNotFound は対象レコードが存在しないことを表す。
	ErrNotFound = errors.New("レコードが見つかりません")
	// ErrDuplicateEmail はメールアドレスが既に登録済みであることを表す。
	ErrDuplicateEmail = errors.New("メールアドレスは既に使用されています")
	// ErrDuplicateItemName は商品名が既に使用されていることを表す。
	ErrDuplicateItemName = errors.New("商品名は既に使用されています")
	// ErrInsufficientStock は注文数量が在庫数を超えていることを表す。
	ErrInsufficientStock = errors.New("注文数量が在庫数を超えています")
	// ErrOrderNotRecorded は注文の記録と在庫の減算の整合が取れなかったことを表す。
	// トランザクション全体がロールバックされるため注文は残らないが、
	// 在庫状態の矛盾を示すため運用者への通知が必要なエラーとして扱う。
	ErrOrderNotRecorded = errors.New("注文の記録と在庫の減算が一致しません")
)

// User はマーケットプレイスのユーザー。
type User struct {
	ID           string
	FirstName    string
	LastName     string
	Email        string
	PasswordHash string
	Role         string
}

// Item は出品されている商品。Quantityが現在の在庫数。
type Item struct {
	ID          string
	UserID      string
	Name        string
	Description string
	Price       float64
	Quantity    int64
}

// Order は確定済みの注文。作成後は変更されない。
// ItemNameとPriceは注文時点のスナップショット。
type Order struct {
	ID        string
	UserID    string
	ItemID    string
	ItemName  string
	Quantity  int64
	Price     float64
	OrderedAt time.Time
}

// Store はSQLiteに対する永続化層。
// 各メソッドは呼び出しごとに現在のDB状態を読み取り、プロセス内に
// キャッシュを持たない。
type Store struct {
	db *sql.DB
}

// NewStore は新しいStoreを生成する。
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// CreateUser はユーザーを登録する。
// メールアドレスが登録済みの場合はErrDuplicateEmailを返す。
func (s *Store) CreateUser(ctx context.Context, u User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, first_name, last_name, email, password_hash, role)
		VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, u.FirstName, u.LastName, u.Email, u.PasswordHash, u.Role,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("ユーザーの登録に失敗: %w", err)
	}
	return nil
}

// GetUserByEmail はメールアドレスでユーザーを取得する。
func (s *Store) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var u User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, first_name, last_name, email, password_hash, role
		FROM users WHERE email = ?`, email,
	).Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.PasswordHash, &u.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("ユーザーの取得に失敗: %w", err)
	}
	return u, nil
}

// CreateItem は商品を出品する。
// 商品名が使用済みの場合はErrDuplicateItemNameを返す。
func (s *Store) CreateItem(ctx context.Context, i Item) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO items (id, user_id, name, description, price, quantity)
		VALUES (?, ?, ?, ?, ?, ?)`,
		i.ID, i.UserID, i.Name, i.Description, i.Price, i.Quantity,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateItemName
	}
	if err != nil {
		return fmt.Errorf("商品の登録に失敗: %w", err)
	}
	return nil
}

// GetItemByID はIDで商品を取得する。
func (s *Store) GetItemByID(ctx context.Context, id string) (Item, error) {
	var i Item
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, description, price, quantity
		FROM items WHERE id = ?`, id,
	).Scan(&i.ID, &i.UserID, &i.Name, &i.Description, &i.Price, &i.Quantity)
	if errors.Is(err, sql.ErrNoRows) {
		return Item{}, ErrNotFound
	}
	if err != nil {
		return Item{}, fmt.Errorf("商品の取得に失敗: %w", err)
	}
	return i, nil
}

// SearchItemsByName は商品名の部分一致（大文字小文字を無視）で商品を検索する。
func (s *Store) SearchItemsByName(ctx context.Context, name string) ([]Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name, description, price, quantity
		FROM items WHERE name LIKE '%' || ? || '%' COLLATE NOCASE
		ORDER BY name`, name,
	)
	if err != nil {
		return nil, fmt.Errorf("商品の検索に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanItems(rows)
}

// ListItems は全商品を取得する。
func (s *Store) ListItems(ctx context.Context) ([]Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name, description, price, quantity
		FROM items ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("商品一覧の取得に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanItems(rows)
}

// UpdateItemParams は商品更新のパラメータ。nilのフィールドは変更しない。
type UpdateItemParams struct {
	ID          string
	Name        *string
	Description *string
	Price       *float64
	Quantity    *int64
}

// UpdateItem は商品の属性を部分更新する。
// 対象が存在しない場合はErrNotFoundを返す。
func (s *Store) UpdateItem(ctx context.Context, p UpdateItemParams) error {
	sets := make([]string, 0, 5)
	args := make([]any, 0, 6)
	if p.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *p.Name)
	}
	if p.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *p.Description)
	}
	if p.Price != nil {
		sets = append(sets, "price = ?")
		args = append(args, *p.Price)
	}
	if p.Quantity != nil {
		sets = append(sets, "quantity = ?")
		args = append(args, *p.Quantity)
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = datetime('now')")
	args = append(args, p.ID)

	res, err := s.db.ExecContext(ctx,
		"UPDATE items SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if isUniqueViolation(err) {
		return ErrDuplicateItemName
	}
	if err != nil {
		return fmt.Errorf("商品の更新に失敗: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の確認に失敗: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteItem は商品を削除し、削除した商品名を返す。
// 対象が存在しない場合はErrNotFoundを返す。
func (s *Store) DeleteItem(ctx context.Context, id string) (string, error) {
	var name string
	err := s.db.QueryRowContext(ctx,
		"DELETE FROM items WHERE id = ? RETURNING name", id,
	).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("商品の削除に失敗: %w", err)
	}
	return name, nil
}

// ListOrdersByUserID はユーザーの注文一覧を取得する。
func (s *Store) ListOrdersByUserID(ctx context.Context, userID string) ([]Order, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, item_id, item_name, quantity, price, ordered_at
		FROM orders WHERE user_id = ? ORDER BY ordered_at DESC`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("注文一覧の取得に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var orders []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.ItemID, &o.ItemName, &o.Quantity, &o.Price, &o.OrderedAt); err != nil {
			return nil, fmt.Errorf("注文の読み取りに失敗: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// PlaceOrderParams は注文確定のパラメータ。
// ItemNameとPriceは注文時点のスナップショットとして注文レコードに保存される。
type PlaceOrderParams struct {
	OrderID  string
	UserID   string
	ItemID   string
	ItemName string
	Quantity int64
	Price    float64
}

// PlaceOrder は在庫チェック・注文レコードの作成・在庫の減算を
// 単一トランザクションで実行する。
//
// 在庫の減算は「quantity >= 注文数」を条件に含む条件付きUPDATEで行い、
// 影響行数で成立を検証する。トランザクションは書き込みロックを先行取得する
// （DSNの_txlock=immediate）ため、同一商品への同時注文は直列化され、
// 後続の注文は減算後の在庫を読み取る。両方の注文が同じ減算前の在庫を
// 読んで共に成立することはない。
//
// 失敗分類: 商品が存在しない場合はErrNotFound、在庫不足は
// ErrInsufficientStock、トランザクション内の読み取りと減算結果が
// 矛盾した場合はロールバックのうえErrOrderNotRecorded。
func (s *Store) PlaceOrder(ctx context.Context, p PlaceOrderParams) (Order, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Order{}, fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var available int64
	err = tx.QueryRowContext(ctx,
		"SELECT quantity FROM items WHERE id = ?", p.ItemID,
	).Scan(&available)
	if errors.Is(err, sql.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, fmt.Errorf("在庫の取得に失敗: %w", err)
	}

	if p.Quantity > available {
		return Order{}, ErrInsufficientStock
	}

	order := Order{
		ID:        p.OrderID,
		UserID:    p.UserID,
		ItemID:    p.ItemID,
		ItemName:  p.ItemName,
		Quantity:  p.Quantity,
		Price:     p.Price,
		OrderedAt: time.Now().UTC(),
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, item_id, item_name, quantity, price, ordered_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		order.ID, order.UserID, order.ItemID, order.ItemName, order.Quantity, order.Price, order.OrderedAt,
	); err != nil {
		return Order{}, fmt.Errorf("注文の記録に失敗: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE items SET quantity = quantity - ?, updated_at = datetime('now')
		WHERE id = ? AND quantity >= ?`,
		p.Quantity, p.ItemID, p.Quantity,
	)
	if err != nil {
		return Order{}, fmt.Errorf("在庫の減算に失敗: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return Order{}, fmt.Errorf("減算結果の確認に失敗: %w", err)
	}
	if rows == 0 {
		// 同一トランザクション内で読み取った在庫と減算条件が矛盾した。
		// ロールバックで注文レコードごと取り消されるが、在庫状態の異常を
		// 示すためエラーログに残す。
		log.Printf("[ERROR] 注文と在庫減算の不整合を検出: item_id=%s quantity=%d available=%d",
			p.ItemID, p.Quantity, available)
		return Order{}, ErrOrderNotRecorded
	}

	if err := tx.Commit(); err != nil {
		return Order{}, fmt.Errorf("トランザクションの確定に失敗: %w", err)
	}
	return order, nil
}

// scanItems は検索結果の行をItemのスライスに読み取る。
func scanItems(rows *sql.Rows) ([]Item, error) {
	var items []Item
	for rows.Next() {
		var i Item
		if err := rows.Scan(&i.ID, &i.UserID, &i.Name, &i.Description, &i.Price, &i.Quantity); err != nil {
			return nil, fmt.Errorf("商品の読み取りに失敗: %w", err)
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

// isUniqueViolation はSQLiteの一意制約違反かどうかを判定する。
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
