package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	"github.com/books-fulfillment/cmd/api/book"
	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	jsoniter "github.com/json-iterator/go"
	"github.com/lib/pq"

	_ "github.com/golang-migrate/migrate/v4/source/file"
)

const (
	dialectPostgres = "postgres"

	pqUniqueViolation = "23505"
	pqCheckViolation  = "23514"

	constraintOrdersUser = "orders_user_id_key"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var bookColumns = []any{
	"book_key", "book_id", "title", "author", "thumbnail_url", "description", "quantity",
	"approved", "added_by", "contributor_email", "contributor_image_url", "created_at", "updated_at",
}

const bookReturning = `book_key, book_id, title, author, thumbnail_url, description, quantity,
	approved, added_by, contributor_email, contributor_image_url, created_at, updated_at`

const noteReturning = `note_id, position, note_text, contributor, image_url, created_at, updated_at`

const orderReturning = `order_id, user_id, full_name, location, items, confirmation_number, status, created_at, updated_at`

type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db  *sql.DB
	exc *Executor
}

type Executor struct {
	DBTX
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		db:  db,
		exc: NewExc(db),
	}
}

func NewExc(dbtx DBTX) *Executor {
	return &Executor{DBTX: dbtx}
}

func (store *Store) BeginTx(ctx context.Context, opts *sql.TxOptions) (book.Repository, driver.Tx, error) {
	tx, err := store.db.BeginTx(ctx, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("beginning transaction: %w", err)
	}

	txRepo := NewStore(store.db)
	txRepo.exc = NewExc(tx)
	return txRepo, tx, nil
}

type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

/* Connects to the database trought a connection string and returns a pointer to a valid DB object (*sql.DB). */
func ConnectDb(ctx context.Context, connStr string, pool PoolConfig) (*sql.DB, error) {
	sqlDB, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("connecting to db, openning: %w", err)
	}

	if pool.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("connecting to db, pinging: %w", err)
	}
	return sqlDB, nil
}

/* Applies every pending migration found under path. Returns migrate.ErrNoChange wrapped when there is nothing to do. */
func MigrationUp(store *Store, path string) error {
	driver, err := postgres.WithInstance(store.db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("migrating up: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", path),
		"postgres", driver)
	if err != nil {
		return fmt.Errorf("migrating up: %w", err)
	}

	if err := m.Up(); err != nil {
		return fmt.Errorf("migrating up: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBook(row rowScanner) (book.Book, error) {
	var b book.Book
	err := row.Scan(&b.Key, &b.ID, &b.Title, &b.Author, &b.ThumbnailURL, &b.Description, &b.Quantity,
		&b.Approved, &b.AddedBy, &b.ContributorEmail, &b.ContributorImageURL, &b.CreatedAt, &b.UpdatedAt)
	b.Notes = []book.Note{}
	return b, err
}

func scanNote(row rowScanner) (book.Note, error) {
	var n book.Note
	err := row.Scan(&n.ID, &n.Position, &n.Text, &n.Contributor, &n.ImageURL, &n.CreatedAt, &n.UpdatedAt)
	return n, err
}

type storedItem struct {
	ProductID string `json:"product_id"`
}

func scanOrder(row rowScanner) (book.Order, error) {
	var o book.Order
	var items []byte
	var status string
	err := row.Scan(&o.ID, &o.UserID, &o.FullName, &o.Location, &items, &o.ConfirmationNumber, &status, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return book.Order{}, err
	}
	o.Status = book.OrderStatus(status)

	var stored []storedItem
	if err := json.Unmarshal(items, &stored); err != nil {
		return book.Order{}, fmt.Errorf("decoding order items: %w", err)
	}
	o.Items = make([]book.OrderItem, 0, len(stored))
	for _, it := range stored {
		o.Items = append(o.Items, book.OrderItem{ProductID: it.ProductID})
	}
	return o, nil
}

/* Maps constraint violations onto the matching responses. */
func translate(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case pqUniqueViolation:
		if pqErr.Constraint == constraintOrdersUser {
			return book.ErrResponseOrderUserDuplicate
		}
		return book.ErrResponseBookDuplicate
	case pqCheckViolation:
		return book.ErrResponseInsufficientInventory
	}
	return err
}

// -- Books --

/* Searches a book in database based on its surrogate key and returns it with its notes. */
func (store *Store) GetBookByKey(ctx context.Context, key int64) (book.Book, error) {
	sqlStatement := `SELECT ` + bookReturning + `
	FROM books
	WHERE book_key=$1;`
	return store.getBook(ctx, "searching by key", sqlStatement, key)
}

/* Searches a book in database based on ID and returns it with its notes. */
func (store *Store) GetBookByNaturalKey(ctx context.Context, id string) (book.Book, error) {
	sqlStatement := `SELECT ` + bookReturning + `
	FROM books
	WHERE book_id=$1;`
	return store.getBook(ctx, "searching by ID", sqlStatement, id)
}

func (store *Store) getBook(ctx context.Context, op, sqlStatement string, arg any) (book.Book, error) {
	b, err := scanBook(store.exc.QueryRowContext(ctx, sqlStatement, arg))
	if err != nil {
		switch err {
		case sql.ErrNoRows:
			return book.Book{}, fmt.Errorf("%s: %w", op, book.ErrResponseBookNotFound)
		default:
			return book.Book{}, fmt.Errorf("%s: %w", op, err)
		}
	}

	notes, err := store.ListNotes(ctx, b.Key)
	if err != nil {
		return book.Book{}, fmt.Errorf("%s: %w", op, err)
	}
	b.Notes = notes
	return b, nil
}

/* Returns the books matching the approval filter in key order, each with its notes. */
func (store *Store) ListBooks(ctx context.Context, filter book.ListBooksRequest) ([]book.Book, error) {
	stmt := goqu.Dialect(dialectPostgres).
		From("books").
		Select(bookColumns...).
		Order(goqu.I("book_key").Asc())
	switch {
	case filter.PendingOnly:
		stmt = stmt.Where(goqu.Ex{"approved": false})
	case !filter.IncludeUnapproved:
		stmt = stmt.Where(goqu.Ex{"approved": true})
	}

	sqlQuery, args, err := stmt.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("building books query: %w", err)
	}

	rows, err := store.exc.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("listing books from db: %w", err)
	}
	defer rows.Close()

	bookslist := []book.Book{}
	index := map[int64]int{}
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("listing books from db: %w", err)
		}
		index[b.Key] = len(bookslist)
		bookslist = append(bookslist, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing books from db: %w", err)
	}
	if len(bookslist) == 0 {
		return bookslist, nil
	}

	keys := make([]int64, 0, len(bookslist))
	for _, b := range bookslist {
		keys = append(keys, b.Key)
	}
	notesQuery, args, err := goqu.Dialect(dialectPostgres).
		From("notes").
		Select("book_key", "note_id", "position", "note_text", "contributor", "image_url", "created_at", "updated_at").
		Where(goqu.Ex{"book_key": keys}).
		Order(goqu.I("book_key").Asc(), goqu.I("position").Asc()).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("building notes query: %w", err)
	}

	noteRows, err := store.exc.QueryContext(ctx, notesQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("listing notes from db: %w", err)
	}
	defer noteRows.Close()
	for noteRows.Next() {
		var key int64
		var n book.Note
		if err := noteRows.Scan(&key, &n.ID, &n.Position, &n.Text, &n.Contributor, &n.ImageURL, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, fmt.Errorf("listing notes from db: %w", err)
		}
		i := index[key]
		bookslist[i].Notes = append(bookslist[i].Notes, n)
	}
	if err := noteRows.Err(); err != nil {
		return nil, fmt.Errorf("listing notes from db: %w", err)
	}

	return bookslist, nil
}

/* Verifies if there is a book with the same title and author already stored. */
func (store *Store) BookExists(ctx context.Context, title, author string) (bool, error) {
	sqlStatement := `SELECT EXISTS (SELECT 1 FROM books WHERE title = $1 AND author = $2);`
	var exists bool
	if err := store.exc.QueryRowContext(ctx, sqlStatement, title, author).Scan(&exists); err != nil {
		return false, fmt.Errorf("verifying same title and author on db: %w", err)
	}
	return exists, nil
}

/* Stores the book into the database, checks and returns it if succeed. */
func (store *Store) CreateBook(ctx context.Context, bookEntry book.Book) (book.Book, error) {
	sqlStatement := `
	INSERT INTO books (book_id, title, author, thumbnail_url, description, quantity, approved,
		added_by, contributor_email, contributor_image_url, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	RETURNING ` + bookReturning
	createdRow := store.exc.QueryRowContext(ctx, sqlStatement, bookEntry.ID, bookEntry.Title, bookEntry.Author,
		bookEntry.ThumbnailURL, bookEntry.Description, bookEntry.Quantity, bookEntry.Approved, bookEntry.AddedBy,
		bookEntry.ContributorEmail, bookEntry.ContributorImageURL, bookEntry.CreatedAt, bookEntry.UpdatedAt)
	created, err := scanBook(createdRow)
	if err != nil {
		return book.Book{}, fmt.Errorf("storing book on db: %w", translate(err))
	}
	return created, nil
}

/* Rewrites the descriptive fields of a book. Quantity and approval have their own statements. */
func (store *Store) UpdateBook(ctx context.Context, bookEntry book.Book) (book.Book, error) {
	sqlStatement := `
	UPDATE books
	SET title = $2, author = $3, description = $4, thumbnail_url = $5, updated_at = $6
	WHERE book_key = $1
	RETURNING ` + bookReturning
	updatedRow := store.exc.QueryRowContext(ctx, sqlStatement, bookEntry.Key, bookEntry.Title, bookEntry.Author,
		bookEntry.Description, bookEntry.ThumbnailURL, bookEntry.UpdatedAt)
	return store.withNotes(ctx, "updating on db", updatedRow)
}

/* Change the status of 'approved' column on database. */
func (store *Store) SetBookApproval(ctx context.Context, key int64, approved bool, at time.Time) (book.Book, error) {
	sqlStatement := `
	UPDATE books
	SET approved = $2, updated_at = $3
	WHERE book_key = $1
	RETURNING ` + bookReturning
	updatedRow := store.exc.QueryRowContext(ctx, sqlStatement, key, approved, at)
	return store.withNotes(ctx, "approving on db", updatedRow)
}

func (store *Store) withNotes(ctx context.Context, op string, row *sql.Row) (book.Book, error) {
	b, err := scanBook(row)
	if err != nil {
		switch err {
		case sql.ErrNoRows:
			return book.Book{}, fmt.Errorf("%s: %w", op, book.ErrResponseBookNotFound)
		default:
			return book.Book{}, fmt.Errorf("%s: %w", op, translate(err))
		}
	}
	notes, err := store.ListNotes(ctx, b.Key)
	if err != nil {
		return book.Book{}, fmt.Errorf("%s: %w", op, err)
	}
	b.Notes = notes
	return b, nil
}

/* Deletes the book and, through the foreign key, its notes. Reports whether a row was removed. */
func (store *Store) DeleteBook(ctx context.Context, key int64) (bool, error) {
	res, err := store.exc.ExecContext(ctx, `DELETE FROM books WHERE book_key = $1;`, key)
	if err != nil {
		return false, fmt.Errorf("deleting book from db: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deleting book from db: %w", err)
	}
	return affected > 0, nil
}

// -- Inventory --

/*
Takes amount units off the book in a single conditional statement. When no row matches,
a follow-up lookup tells a missing book apart from a short one.
*/
func (store *Store) DecrementQuantity(ctx context.Context, key int64, amount int, at time.Time) (book.Book, error) {
	sqlStatement := `
	UPDATE books
	SET quantity = quantity - $2, updated_at = $3
	WHERE book_key = $1 AND quantity >= $2
	RETURNING ` + bookReturning
	updatedRow := store.exc.QueryRowContext(ctx, sqlStatement, key, amount, at)
	b, err := scanBook(updatedRow)
	if err == nil {
		return b, nil
	}
	if err != sql.ErrNoRows {
		return book.Book{}, fmt.Errorf("decrementing quantity on db: %w", translate(err))
	}

	exists, err := store.bookKeyExists(ctx, key)
	if err != nil {
		return book.Book{}, fmt.Errorf("decrementing quantity on db: %w", err)
	}
	if !exists {
		return book.Book{}, fmt.Errorf("decrementing quantity on db: %w", book.ErrResponseBookNotFound)
	}
	return book.Book{}, fmt.Errorf("decrementing quantity on db: %w", book.ErrResponseInsufficientInventory)
}

func (store *Store) IncrementQuantity(ctx context.Context, key int64, amount int, at time.Time) (book.Book, error) {
	sqlStatement := `
	UPDATE books
	SET quantity = quantity + $2, updated_at = $3
	WHERE book_key = $1
	RETURNING ` + bookReturning
	updatedRow := store.exc.QueryRowContext(ctx, sqlStatement, key, amount, at)
	b, err := scanBook(updatedRow)
	if err != nil {
		switch err {
		case sql.ErrNoRows:
			return book.Book{}, fmt.Errorf("incrementing quantity on db: %w", book.ErrResponseBookNotFound)
		default:
			return book.Book{}, fmt.Errorf("incrementing quantity on db: %w", err)
		}
	}
	return b, nil
}

func (store *Store) bookKeyExists(ctx context.Context, key int64) (bool, error) {
	var exists bool
	err := store.exc.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM books WHERE book_key = $1);`, key).Scan(&exists)
	return exists, err
}

// -- Notes --

/* Holds the book row until the enclosing transaction ends. */
func (store *Store) LockBook(ctx context.Context, key int64) error {
	var locked int64
	err := store.exc.QueryRowContext(ctx, `SELECT book_key FROM books WHERE book_key = $1 FOR UPDATE;`, key).Scan(&locked)
	if err != nil {
		switch err {
		case sql.ErrNoRows:
			return fmt.Errorf("locking book on db: %w", book.ErrResponseBookNotFound)
		default:
			return fmt.Errorf("locking book on db: %w", err)
		}
	}
	return nil
}

func (store *Store) ListNotes(ctx context.Context, bookKey int64) ([]book.Note, error) {
	sqlStatement := `SELECT ` + noteReturning + `
	FROM notes
	WHERE book_key = $1
	ORDER BY position ASC;`
	rows, err := store.exc.QueryContext(ctx, sqlStatement, bookKey)
	if err != nil {
		return nil, fmt.Errorf("listing notes from db: %w", err)
	}
	defer rows.Close()

	notes := []book.Note{}
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("listing notes from db: %w", err)
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing notes from db: %w", err)
	}
	return notes, nil
}

func (store *Store) InsertNote(ctx context.Context, bookKey int64, n book.Note) (book.Note, error) {
	sqlStatement := `
	INSERT INTO notes (note_id, book_key, note_text, contributor, image_url, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	RETURNING ` + noteReturning
	created, err := scanNote(store.exc.QueryRowContext(ctx, sqlStatement, n.ID, bookKey, n.Text, n.Contributor, n.ImageURL, n.CreatedAt, n.UpdatedAt))
	if err != nil {
		return book.Note{}, fmt.Errorf("storing note on db: %w", err)
	}
	return created, nil
}

func (store *Store) UpdateNote(ctx context.Context, bookKey int64, n book.Note) (book.Note, error) {
	sqlStatement := `
	UPDATE notes
	SET note_text = $3, contributor = $4, image_url = $5, updated_at = $6
	WHERE note_id = $1 AND book_key = $2
	RETURNING ` + noteReturning
	updated, err := scanNote(store.exc.QueryRowContext(ctx, sqlStatement, n.ID, bookKey, n.Text, n.Contributor, n.ImageURL, n.UpdatedAt))
	if err != nil {
		switch err {
		case sql.ErrNoRows:
			return book.Note{}, fmt.Errorf("updating note on db: %w", book.ErrResponseNoteNotFound)
		default:
			return book.Note{}, fmt.Errorf("updating note on db: %w", err)
		}
	}
	return updated, nil
}

func (store *Store) DeleteNote(ctx context.Context, bookKey int64, noteID string) error {
	res, err := store.exc.ExecContext(ctx, `DELETE FROM notes WHERE note_id = $1 AND book_key = $2;`, noteID, bookKey)
	if err != nil {
		return fmt.Errorf("deleting note from db: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting note from db: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("deleting note from db: %w", book.ErrResponseNoteNotFound)
	}
	return nil
}

// -- Orders --

/* Stores a new order into the database. The user_id constraint rejects a second order per user. */
func (store *Store) CreateOrder(ctx context.Context, newOrder book.Order) (book.Order, error) {
	stored := make([]storedItem, 0, len(newOrder.Items))
	for _, item := range newOrder.Items {
		stored = append(stored, storedItem{ProductID: item.ProductID})
	}
	items, err := json.Marshal(stored)
	if err != nil {
		return book.Order{}, fmt.Errorf("encoding order items: %w", err)
	}

	sqlStatement := `
	INSERT INTO orders (order_id, user_id, full_name, location, items, confirmation_number, status, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	RETURNING ` + orderReturning
	createdRow := store.exc.QueryRowContext(ctx, sqlStatement, newOrder.ID, newOrder.UserID, newOrder.FullName,
		newOrder.Location, string(items), newOrder.ConfirmationNumber, string(newOrder.Status), newOrder.CreatedAt, newOrder.UpdatedAt)
	created, err := scanOrder(createdRow)
	if err != nil {
		return book.Order{}, fmt.Errorf("storing order on db: %w", translate(err))
	}
	return created, nil
}

func (store *Store) GetOrder(ctx context.Context, id string) (book.Order, error) {
	sqlStatement := `SELECT ` + orderReturning + `
	FROM orders
	WHERE order_id = $1;`
	o, err := scanOrder(store.exc.QueryRowContext(ctx, sqlStatement, id))
	if err != nil {
		switch err {
		case sql.ErrNoRows:
			return book.Order{}, fmt.Errorf("getting order from db: %w", book.ErrResponseOrderNotFound)
		default:
			return book.Order{}, fmt.Errorf("getting order from db: %w", err)
		}
	}
	return o, nil
}

func (store *Store) ListOrders(ctx context.Context) ([]book.Order, error) {
	return store.listOrders(ctx, nil)
}

func (store *Store) ListOrdersByUser(ctx context.Context, userID string) ([]book.Order, error) {
	return store.listOrders(ctx, goqu.Ex{"user_id": userID})
}

func (store *Store) listOrders(ctx context.Context, where goqu.Ex) ([]book.Order, error) {
	stmt := goqu.Dialect(dialectPostgres).
		From("orders").
		Select("order_id", "user_id", "full_name", "location", "items", "confirmation_number", "status", "created_at", "updated_at").
		Order(goqu.I("created_at").Asc())
	if where != nil {
		stmt = stmt.Where(where)
	}
	sqlQuery, args, err := stmt.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("building orders query: %w", err)
	}

	rows, err := store.exc.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("listing orders from db: %w", err)
	}
	defer rows.Close()

	orders := []book.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("listing orders from db: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing orders from db: %w", err)
	}
	return orders, nil
}

/*
Moves the order from one status to another only if it still holds from. A miss is either
an unknown order or a status changed underneath us, which the caller may retry.
*/
func (store *Store) UpdateOrderStatus(ctx context.Context, id string, from, to book.OrderStatus, at time.Time) (book.Order, error) {
	sqlStatement := `
	UPDATE orders
	SET status = $3, updated_at = $4
	WHERE order_id = $1 AND status = $2
	RETURNING ` + orderReturning
	o, err := scanOrder(store.exc.QueryRowContext(ctx, sqlStatement, id, string(from), string(to), at))
	if err == nil {
		return o, nil
	}
	if err != sql.ErrNoRows {
		return book.Order{}, fmt.Errorf("updating order status on db: %w", err)
	}

	var exists bool
	if err := store.exc.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE order_id = $1);`, id).Scan(&exists); err != nil {
		return book.Order{}, fmt.Errorf("updating order status on db: %w", err)
	}
	if !exists {
		return book.Order{}, fmt.Errorf("updating order status on db: %w", book.ErrResponseOrderNotFound)
	}
	return book.Order{}, fmt.Errorf("updating order status on db: %w", book.ErrResponseConcurrentUpdate)
}
