package market

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// addOrderRequest は注文リクエストのJSON構造。
type addOrderRequest struct {
	// UserID は注文者のユーザーID。
	UserID string `json:"user_id" binding:"required"`
	// ItemID は注文対象の商品ID。
	ItemID string `json:"item_id" binding:"required"`
	// ItemName は注文時点の商品名スナップショット。
	ItemName string `json:"item_name" binding:"required"`
	// Quantity は注文数量。1以上。
	Quantity int64 `json:"quantity" binding:"required,gt=0"`
	// Price は注文時点の単価スナップショット。
	Price float64 `json:"price"`
	// QuantityDiff は旧クライアントが送信する更新後の在庫数。
	// 減算はサーバー側で数量から導出するため、この値は使用しない。
	QuantityDiff int64 `json:"quantity_diff"`
}

// orderResponse は注文のJSONレスポンス構造。
type orderResponse struct {
	ID       string  `json:"id"`
	UserID   string  `json:"user_id"`
	ItemID   string  `json:"item_id"`
	ItemName string  `json:"item_name"`
	Quantity int64   `json:"quantity"`
	Price    float64 `json:"price"`
	Date     string  `json:"date"`
}

// toOrderResponse はDB行をJSONレスポンスに変換する。
func toOrderResponse(o Order) orderResponse {
	return orderResponse{
		ID:       o.ID,
		UserID:   o.UserID,
		ItemID:   o.ItemID,
		ItemName: o.ItemName,
		Quantity: o.Quantity,
		Price:    o.Price,
		Date:     o.OrderedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
}

// handleAddOrder は注文確定を処理するハンドラを返す。
// 在庫チェック・注文レコードの作成・在庫の減算はStore.PlaceOrderが
// 単一トランザクションで行う。
func (s *Server) handleAddOrder() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req addOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		order, err := s.store.PlaceOrder(c.Request.Context(), PlaceOrderParams{
			OrderID:  uuid.New().String(),
			UserID:   req.UserID,
			ItemID:   req.ItemID,
			ItemName: req.ItemName,
			Quantity: req.Quantity,
			Price:    req.Price,
		})
		switch {
		case errors.Is(err, ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("商品が見つかりません: id=%s", req.ItemID)})
			return
		case errors.Is(err, ErrInsufficientStock):
			c.JSON(http.StatusBadRequest, gin.H{"error": "注文数量が在庫数を超えています"})
			return
		case errors.Is(err, ErrOrderNotRecorded):
			c.JSON(http.StatusInternalServerError, gin.H{"error": "注文処理に失敗しました。注文は確定していません"})
			log.Printf("[ERROR] 注文不整合: user_id=%s item_id=%s quantity=%d: %v",
				req.UserID, req.ItemID, req.Quantity, err)
			return
		case err != nil:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "注文の作成に失敗しました"})
			log.Printf("注文作成エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, toOrderResponse(order))
	}
}

// handleGetOrders はユーザーの注文一覧取得を処理するハンドラを返す。
func (s *Server) handleGetOrders() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Param("user_id")

		orders, err := s.store.ListOrdersByUserID(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "注文一覧の取得に失敗しました"})
			log.Printf("注文一覧取得エラー: %v", err)
			return
		}
		if len(orders) == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "注文が見つかりません"})
			return
		}

		responses := make([]orderResponse, 0, len(orders))
		for _, o := range orders {
			responses = append(responses, toOrderResponse(o))
		}

		c.JSON(http.StatusOK, responses)
	}
}
