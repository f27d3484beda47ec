package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/tichatapp/tichat_backend/config"
	"github.com/tichatapp/tichat_backend/intake"
	"github.com/tichatapp/tichat_backend/models"
	"github.com/tichatapp/tichat_backend/models/reports"
	"github.com/tichatapp/tichat_backend/utils"
	"github.com/tichatapp/tichat_backend/whatsapp"
	"github.com/tichatapp/tichat_backend/workflow"
)

// respondError maps domain errors to HTTP statuses. Guard failures are the
// operator's problem (4xx); anything unexpected is logged and becomes a 500.
func respondError(c *gin.Context, err error) {
	var validationErrs validator.ValidationErrors
	switch {
	case errors.As(err, &validationErrs):
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": utils.ProcessValidationErrors(err)})
	case errors.Is(err, workflow.ErrNoTargetSelected), errors.Is(err, workflow.ErrEmptyCart):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, workflow.ErrInsufficientStock), errors.Is(err, workflow.ErrFinalizeInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, workflow.ErrCartNotFound), errors.Is(err, utils.ErrorRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrorInvalidSaleStatus):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		config.LogError(config.GetLogger(), "handlers.go", "respondError", c.FullPath(), nil, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func pathID(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

// --- products ---

func listProductsHandler(c *gin.Context) {
	products, err := models.ListProducts(c.Request.Context(), c.Query("name"), c.Query("category"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func createProductHandler(c *gin.Context) {
	var input models.NewProduct
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, err)
		return
	}
	product, err := models.CreateProduct(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

func getProductHandler(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	product, err := models.GetProduct(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func updateProductHandler(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var input models.NewProduct
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, err)
		return
	}
	product, err := models.UpdateProduct(c.Request.Context(), id, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func deleteProductHandler(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := models.DeleteProduct(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func lowStockHandler(c *gin.Context) {
	threshold := decimal.NewFromInt(5)
	if v := c.Query("threshold"); v != "" {
		parsed, err := decimal.NewFromString(v)
		if err != nil || parsed.IsNegative() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid threshold"})
			return
		}
		threshold = parsed
	}
	products, err := models.LowStockProducts(c.Request.Context(), threshold)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

// --- customers ---

func listCustomersHandler(c *gin.Context) {
	customers, err := models.ListCustomers(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, customers)
}

func createCustomerHandler(c *gin.Context) {
	var input models.NewCustomer
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, err)
		return
	}
	customer, err := models.CreateCustomer(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, customer)
}

func updateCustomerHandler(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var input models.NewCustomer
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, err)
		return
	}
	customer, err := models.UpdateCustomer(c.Request.Context(), id, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, customer)
}

func deleteCustomerHandler(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := models.DeleteCustomer(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// --- settings ---

func getSettingsHandler(c *gin.Context) {
	settings, err := models.GetShopSettings(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

func updateSettingsHandler(c *gin.Context) {
	var input models.NewShopSettings
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, err)
		return
	}
	settings, err := models.UpdateShopSettings(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

// --- carts ---

type cartView struct {
	*workflow.Cart
	Totals workflow.Totals `json:"totals"`
}

func viewCart(c *gin.Context, cart *workflow.Cart) (*cartView, error) {
	settings, err := models.GetShopSettings(c.Request.Context())
	if err != nil {
		return nil, err
	}
	return &cartView{
		Cart:   cart,
		Totals: workflow.ComputeTotals(cart.Target, cart.Lines, settings),
	}, nil
}

func respondCart(c *gin.Context, cart *workflow.Cart) {
	view, err := viewCart(c, cart)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func createCartHandler(c *gin.Context) {
	cart := cartManager.CreateCart()

	// The target may come along in the creation request.
	var target workflow.CheckoutTarget
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&target); err != nil {
			respondError(c, err)
			return
		}
		if target.IsSet() {
			if err := resolveTarget(c, &target); err != nil {
				respondError(c, err)
				return
			}
			selected, err := cartManager.SelectTarget(cart.ID, target)
			if err != nil {
				respondError(c, err)
				return
			}
			cart = selected
		}
	}

	view, err := viewCart(c, cart)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

func getCartHandler(c *gin.Context) {
	cart, err := cartManager.GetCart(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondCart(c, cart)
}

// resolveTarget fills the display name and phone from the customer record;
// the client only sends the id.
func resolveTarget(c *gin.Context, target *workflow.CheckoutTarget) error {
	if target.CustomerId <= 0 {
		return nil
	}
	customer, err := models.GetCustomer(c.Request.Context(), target.CustomerId)
	if err != nil {
		return err
	}
	target.CustomerName = customer.Nickname
	target.CustomerPhone = customer.Phone
	return nil
}

func selectTargetHandler(c *gin.Context) {
	var target workflow.CheckoutTarget
	if err := c.ShouldBindJSON(&target); err != nil {
		respondError(c, err)
		return
	}
	if err := resolveTarget(c, &target); err != nil {
		respondError(c, err)
		return
	}
	cart, err := cartManager.SelectTarget(c.Param("id"), target)
	if err != nil {
		respondError(c, err)
		return
	}
	respondCart(c, cart)
}

type addItemRequest struct {
	ProductId int `json:"product_id" binding:"required"`
	Quantity  int `json:"quantity"`
}

func addCartItemHandler(c *gin.Context) {
	var input addItemRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, err)
		return
	}
	qty := input.Quantity
	if qty <= 0 {
		qty = 1
	}

	cart, err := cartManager.AddItemQuantity(c.Request.Context(), c.Param("id"), input.ProductId, qty)
	if err != nil {
		respondError(c, err)
		return
	}
	respondCart(c, cart)
}

func removeCartItemHandler(c *gin.Context) {
	productId, ok := pathID(c, "productId")
	if !ok {
		return
	}
	cart, err := cartManager.RemoveItem(c.Param("id"), productId)
	if err != nil {
		respondError(c, err)
		return
	}
	respondCart(c, cart)
}

func finalizeCartHandler(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "finalize_cart")
	defer span.End()
	cartId := c.Param("id")

	// Snapshot the target before finalize clears it; the deep link in the
	// response needs the phone.
	cart, err := cartManager.GetCart(cartId)
	if err != nil {
		respondError(c, err)
		return
	}
	phone := cart.Target.CustomerPhone

	sale, err := cartManager.Finalize(ctx, cartId)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := gin.H{"sale": sale}
	if phone != "" {
		settings, err := models.GetShopSettings(ctx)
		if err == nil {
			body := whatsapp.RenderSaleMessage(sale, settings)
			resp["whatsapp_link"] = whatsapp.DeepLink(phone, body)
		}
	}
	c.JSON(http.StatusCreated, resp)
}

// --- sales ---

func listSalesHandler(c *gin.Context) {
	var filter models.SaleFilter

	filter.Status = models.SaleStatus(c.Query("status"))
	if v := c.Query("customer_id"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid customer_id"})
			return
		}
		filter.CustomerId = id
	}
	filter.Anonymous = strings.EqualFold(c.Query("anonymous"), "true")

	for _, bound := range []struct {
		param string
		dest  **time.Time
	}{
		{"start", &filter.Start},
		{"end", &filter.End},
	} {
		if v := c.Query(bound.param); v != "" {
			t, err := time.ParseInLocation("2006-01-02", v, time.Local)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + bound.param + " date, expected YYYY-MM-DD"})
				return
			}
			*bound.dest = &t
		}
	}

	sales, err := models.ListSales(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sales)
}

type updateSaleStatusRequest struct {
	Status models.SaleStatus `json:"status" binding:"required"`
}

func updateSaleStatusHandler(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var input updateSaleStatusRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, err)
		return
	}
	sale, err := models.UpdateSaleStatus(c.Request.Context(), id, input.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	_ = config.RemoveRedisKey("dashboard_summary")
	c.JSON(http.StatusOK, sale)
}

// --- dashboard ---

func dashboardSummaryHandler(c *gin.Context) {
	summary, err := models.GetDashboardSummary(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func bestSellingHandler(c *gin.Context) {
	limit := 5
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}
	best, err := models.BestSellingProducts(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, best)
}

// --- reports ---

func salesByCustomerReportHandler(c *gin.Context) {
	if err := reports.ExportSalesByCustomerExcel(c.Request.Context(), c.Writer); err != nil {
		respondError(c, err)
	}
}

// --- intake ---

type intakeTextRequest struct {
	Text string `json:"text" binding:"required"`
}

func intakeTextHandler(c *gin.Context) {
	var input intakeTextRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, err)
		return
	}
	extracted := intakeClient.ParseProductsFromText(c.Request.Context(), input.Text)
	c.JSON(http.StatusOK, gin.H{"items": matchCatalogItems(c.Request.Context(), extracted)})
}

func intakeAudioHandler(c *gin.Context) {
	data, mimeType, ok := readUploadedFile(c, "audio")
	if !ok {
		return
	}
	extracted := intakeClient.ParseProductsFromAudio(c.Request.Context(), data, mimeType)
	c.JSON(http.StatusOK, gin.H{"items": matchCatalogItems(c.Request.Context(), extracted)})
}

func intakePhotoHandler(c *gin.Context) {
	ctx := c.Request.Context()
	logger := config.GetLogger()

	data, mimeType, ok := readUploadedFile(c, "photo")
	if !ok {
		return
	}

	// Identification works even when the upload to storage fails; photo
	// URLs just come back empty.
	var photoUrl, thumbnailUrl string
	name := utils.GenerateUniqueFilename()
	if url, err := utils.SaveImageToGCS(ctx, "products/"+name+".jpg", mimeType, data); err != nil {
		config.LogError(logger, "handlers.go", "intakePhotoHandler", "SaveImageToGCS", nil, err)
	} else {
		photoUrl = url
		if thumb, err := utils.MakeThumbnail(data); err != nil {
			config.LogError(logger, "handlers.go", "intakePhotoHandler", "MakeThumbnail", nil, err)
		} else if url, err := utils.SaveImageToGCS(ctx, "products/"+name+"_thumb.jpg", "image/jpeg", thumb); err != nil {
			config.LogError(logger, "handlers.go", "intakePhotoHandler", "SaveImageToGCS thumbnail", nil, err)
		} else {
			thumbnailUrl = url
		}
	}

	identified := intakeClient.IdentifyProductsFromImage(ctx, data, mimeType)
	c.JSON(http.StatusOK, gin.H{
		"items":         identified,
		"photo_url":     photoUrl,
		"thumbnail_url": thumbnailUrl,
	})
}

type productDetailsRequest struct {
	Name string `json:"name" binding:"required"`
}

// productDetailsHandler suggests a category and unit while the shopkeeper
// types a product in by hand.
func productDetailsHandler(c *gin.Context) {
	var input productDetailsRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, intakeClient.ProductDetailsFromName(c.Request.Context(), input.Name))
}

func readUploadedFile(c *gin.Context, field string) ([]byte, string, bool) {
	fileHeader, err := c.FormFile(field)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing " + field + " file"})
		return nil, "", false
	}
	file, err := fileHeader.Open()
	if err != nil {
		respondError(c, err)
		return nil, "", false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(c, err)
		return nil, "", false
	}
	mimeType := fileHeader.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	return data, mimeType, true
}

// matchCatalogItems links extracted lines to catalog products by name so the
// client can add them to a cart directly. Unmatched lines keep ProductId 0.
func matchCatalogItems(ctx context.Context, extracted []intake.ExtractedProduct) models.ParsedItemList {
	items := make(models.ParsedItemList, 0, len(extracted))

	products, err := models.ListProducts(ctx, "", "")
	if err != nil {
		config.LogError(config.GetLogger(), "handlers.go", "matchCatalogItems", "ListProducts", nil, err)
		products = nil
	}

	for _, e := range extracted {
		item := models.ParsedItem{
			Name:      e.Name,
			Quantity:  e.Quantity,
			UnitPrice: e.UnitPrice,
			Category:  e.Category,
			Unit:      e.Unit,
		}
		for _, p := range products {
			if strings.EqualFold(strings.TrimSpace(p.Name), strings.TrimSpace(e.Name)) {
				item.ProductId = p.ID
				item.Name = p.Name
				item.UnitPrice = p.UnitPrice
				item.Unit = p.Unit
				break
			}
		}
		items = append(items, item)
	}
	return items
}

// --- whatsapp orders ---

func listWhatsAppOrdersHandler(c *gin.Context) {
	orders, err := models.ListWhatsAppOrders(c.Request.Context(), models.WhatsAppOrderStatus(c.Query("status")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

// confirmWhatsAppOrderHandler marks the order confirmed and opens a checkout
// cart pre-filled with the matched lines. Unmatched lines are returned so the
// shopkeeper adds them by hand.
func confirmWhatsAppOrderHandler(c *gin.Context) {
	ctx := c.Request.Context()
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	order, err := models.ConfirmWhatsAppOrder(ctx, id)
	if err != nil {
		if err.Error() == "order already attended" {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		respondError(c, err)
		return
	}

	target := workflow.CheckoutTarget{
		Anonymous:     true,
		CustomerName:  order.CustomerName,
		CustomerPhone: order.CustomerPhone,
	}
	if customer, err := models.FindCustomerByPhone(ctx, order.CustomerPhone); err == nil {
		target = workflow.CheckoutTarget{
			CustomerId:    customer.ID,
			CustomerName:  customer.Nickname,
			CustomerPhone: customer.Phone,
		}
	}

	cart := cartManager.CreateCart()
	if cart, err = cartManager.SelectTarget(cart.ID, target); err != nil {
		respondError(c, err)
		return
	}

	var skipped models.ParsedItemList
	for _, item := range order.ParsedItems {
		if item.ProductId == 0 {
			skipped = append(skipped, item)
			continue
		}
		units := int(item.Quantity.IntPart())
		if units < 1 {
			units = 1
		}
		added := false
		for i := 0; i < units; i++ {
			next, err := cartManager.AddItem(ctx, cart.ID, item.ProductId)
			if err != nil {
				// Stock ran out or the product is gone; keep what fit.
				if !added {
					skipped = append(skipped, item)
				}
				break
			}
			cart = next
			added = true
		}
	}

	view, err := viewCart(c, cart)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"order":         order,
		"cart":          view,
		"skipped_items": skipped,
	})
}

func rejectWhatsAppOrderHandler(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	order, err := models.RejectWhatsAppOrder(c.Request.Context(), id)
	if err != nil {
		if err.Error() == "order already attended" {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}
