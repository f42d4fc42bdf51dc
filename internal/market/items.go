package market

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nao1215/ichiba/pkg/middleware"
)

// addItemRequest は商品出品リクエストのJSON構造。
type addItemRequest struct {
	// Name は商品名。全商品で一意。
	Name string `json:"name" binding:"required"`
	// Description は商品説明。
	Description string `json:"description"`
	// Price は単価。
	Price float64 `json:"price" binding:"required,gt=0"`
	// Quantity は初期在庫数。
	Quantity int64 `json:"quantity" binding:"gte=0"`
}

// editItemRequest は商品更新リクエストのJSON構造。
// nilのフィールドは変更しない。
type editItemRequest struct {
	ID          string   `json:"id" binding:"required"`
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price"`
	Quantity    *int64   `json:"quantity"`
}

// deleteItemRequest は商品削除リクエストのJSON構造。
type deleteItemRequest struct {
	ID string `json:"id" binding:"required"`
}

// itemResponse は商品のJSONレスポンス構造。
type itemResponse struct {
	ID          string  `json:"id"`
	UserID      string  `json:"user_id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Quantity    int64   `json:"quantity"`
}

// toItemResponse はDB行をJSONレスポンスに変換する。
func toItemResponse(i Item) itemResponse {
	return itemResponse{
		ID:          i.ID,
		UserID:      i.UserID,
		Name:        i.Name,
		Description: i.Description,
		Price:       i.Price,
		Quantity:    i.Quantity,
	}
}

// toItemResponses はDB行のスライスをJSONレスポンスに変換する。
func toItemResponses(items []Item) []itemResponse {
	responses := make([]itemResponse, 0, len(items))
	for _, i := range items {
		responses = append(responses, toItemResponse(i))
	}
	return responses
}

// handleSearchItems は商品名の部分一致検索を処理するハンドラを返す。
func (s *Server) handleSearchItems() gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("name")

		items, err := s.store.SearchItemsByName(c.Request.Context(), name)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "商品の検索に失敗しました"})
			log.Printf("商品検索エラー: %v", err)
			return
		}
		if len(items) == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "該当する商品が見つかりません"})
			return
		}

		c.JSON(http.StatusOK, toItemResponses(items))
	}
}

// handleListItems は全商品の一覧取得を処理するハンドラを返す。
func (s *Server) handleListItems() gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := s.store.ListItems(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "商品一覧の取得に失敗しました"})
			log.Printf("商品一覧取得エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, toItemResponses(items))
	}
}

// handleAddItem は商品出品を処理するハンドラを返す。
// 出品者は認証済みユーザー（トークンのサブジェクト）。
func (s *Server) handleAddItem() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req addItemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		userID := ""
		if subject := middleware.Subject(c); subject != "" {
			u, err := s.store.GetUserByEmail(c.Request.Context(), subject)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "出品者の特定に失敗しました"})
				log.Printf("出品ユーザー取得エラー: %v", err)
				return
			}
			userID = u.ID
		}

		item := Item{
			ID:          uuid.New().String(),
			UserID:      userID,
			Name:        req.Name,
			Description: req.Description,
			Price:       req.Price,
			Quantity:    req.Quantity,
		}
		if err := s.store.CreateItem(c.Request.Context(), item); err != nil {
			if errors.Is(err, ErrDuplicateItemName) {
				c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("商品名 %s は既に使用されています", req.Name)})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "商品の登録に失敗しました"})
			log.Printf("商品登録エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, toItemResponse(item))
	}
}

// handleEditItem は商品の部分更新を処理するハンドラを返す。
func (s *Server) handleEditItem() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req editItemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		err := s.store.UpdateItem(c.Request.Context(), UpdateItemParams{
			ID:          req.ID,
			Name:        req.Name,
			Description: req.Description,
			Price:       req.Price,
			Quantity:    req.Quantity,
		})
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("商品が見つかりません: id=%s", req.ID)})
			return
		}
		if errors.Is(err, ErrDuplicateItemName) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "商品名は既に使用されています"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "商品の更新に失敗しました"})
			log.Printf("商品更新エラー: %v", err)
			return
		}

		updated, err := s.store.GetItemByID(c.Request.Context(), req.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "更新後の商品の取得に失敗しました"})
			log.Printf("商品取得エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, toItemResponse(updated))
	}
}

// handleDeleteItem は商品削除を処理するハンドラを返す。
// 削除した商品名を返す。
func (s *Server) handleDeleteItem() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req deleteItemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		name, err := s.store.DeleteItem(c.Request.Context(), req.ID)
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "削除対象の商品が見つかりません"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "商品の削除に失敗しました"})
			log.Printf("商品削除エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"name": name})
	}
}
