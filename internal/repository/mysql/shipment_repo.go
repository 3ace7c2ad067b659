package mysql

import (
	"context"
	"database/sql"
	"fashion-backend/internal/model"
	"fashion-backend/internal/util"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

const shipmentColumns = `id, order_id, carrier, COALESCE(tracking_number, ''), status,
	COALESCE(current_location, ''), created_at, updated_at`

type ShipmentRepository struct {
	db *sql.DB
}

func NewShipmentRepository(db *sql.DB) *ShipmentRepository {
	return &ShipmentRepository{db}
}

func scanShipment(row rowScanner) (*model.Shipment, error) {
	var s model.Shipment
	err := row.Scan(&s.ID, &s.OrderID, &s.Carrier, &s.TrackingNumber, &s.Status,
		&s.CurrentLocation, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *ShipmentRepository) CreateShipment(ctx context.Context, shipment *model.Shipment) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		util.Logger.Error("开始事务失败", zap.Error(err))
		return err
	}
	defer tx.Rollback()

	now := time.Now()
	shipment.CreatedAt = now
	shipment.UpdatedAt = now

	result, err := tx.ExecContext(ctx, `
		INSERT INTO shipments (order_id, carrier, tracking_number, status, current_location, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		shipment.OrderID, shipment.Carrier, shipment.TrackingNumber, shipment.Status,
		shipment.CurrentLocation, shipment.CreatedAt, shipment.UpdatedAt)
	if err != nil {
		util.Logger.Error("创建发货记录失败", zap.Error(err), zap.Int("order_id", shipment.OrderID))
		return fmt.Errorf("failed to insert shipment: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get shipment ID: %w", err)
	}
	shipment.ID = int(id)

	if _, err := tx.ExecContext(ctx, `
		UPDATE orders SET status = ?, updated_at = NOW()
		WHERE id = ? AND status IN (?, ?)`,
		model.OrderStatusProcessing, shipment.OrderID, model.OrderStatusPending, model.OrderStatusConfirmed); err != nil {
		return fmt.Errorf("failed to update order after shipment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		util.Logger.Error("提交事务失败", zap.Error(err))
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	util.Logger.Info("发货记录创建成功",
		zap.Int("shipment_id", shipment.ID),
		zap.Int("order_id", shipment.OrderID),
		zap.String("tracking_number", shipment.TrackingNumber))
	return nil
}

func (r *ShipmentRepository) GetShipmentByID(ctx context.Context, id int) (*model.Shipment, error) {
	s, err := scanShipment(r.db.QueryRowContext(ctx, `SELECT `+shipmentColumns+` FROM shipments WHERE id = ?`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get shipment: %w", err)
	}
	return s, nil
}

func (r *ShipmentRepository) GetShipmentByOrderID(ctx context.Context, orderID int) (*model.Shipment, error) {
	s, err := scanShipment(r.db.QueryRowContext(ctx, `SELECT `+shipmentColumns+` FROM shipments WHERE order_id = ?`, orderID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get shipment: %w", err)
	}
	return s, nil
}

func (r *ShipmentRepository) GetShipmentsByStatuses(ctx context.Context, statuses []string) ([]*model.Shipment, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(statuses)), ",")
	args := make([]interface{}, len(statuses))
	for i, s := range statuses {
		args[i] = s
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+shipmentColumns+` FROM shipments WHERE status IN (`+placeholders+`) ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query shipments: %w", err)
	}
	defer rows.Close()

	var shipments []*model.Shipment
	for rows.Next() {
		s, err := scanShipment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan shipment: %w", err)
		}
		shipments = append(shipments, s)
	}
	return shipments, rows.Err()
}

func (r *ShipmentRepository) GetTrackingEvents(ctx context.Context, shipmentID int) ([]*model.TrackingEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, shipment_id, status, location, description, occurred_at
		FROM tracking_events WHERE shipment_id = ? ORDER BY occurred_at, id`, shipmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracking events: %w", err)
	}
	defer rows.Close()

	var events []*model.TrackingEvent
	for rows.Next() {
		var e model.TrackingEvent
		if err := rows.Scan(&e.ID, &e.ShipmentID, &e.Status, &e.Location, &e.Description, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan tracking event: %w", err)
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

func (r *ShipmentRepository) SaveTrackingUpdate(ctx context.Context, shipment *model.Shipment, newEvents []*model.TrackingEvent) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range newEvents {
		e.ShipmentID = shipment.ID
		result, err := tx.ExecContext(ctx, `
			INSERT INTO tracking_events (shipment_id, status, location, description, occurred_at)
			VALUES (?, ?, ?, ?, ?)`,
			e.ShipmentID, e.Status, e.Location, e.Description, e.OccurredAt)
		if err != nil {
			return fmt.Errorf("failed to insert tracking event: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get tracking event ID: %w", err)
		}
		e.ID = int(id)
	}

	shipment.UpdatedAt = time.Now()
	if _, err := tx.ExecContext(ctx, `
		UPDATE shipments SET status = ?, current_location = ?, updated_at = ?
		WHERE id = ?`,
		shipment.Status, shipment.CurrentLocation, shipment.UpdatedAt, shipment.ID); err != nil {
		return fmt.Errorf("failed to update shipment: %w", err)
	}

	return tx.Commit()
}
