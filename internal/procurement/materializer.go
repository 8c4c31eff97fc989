package procurement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/procura-ims/procura/internal/shared"
)

// materializeReceipt creates the goods receipt for a PO if one does not
// exist yet and returns it either way. The receipt number is derived from
// the PO id, so a PO can never accumulate more than one receipt. Lines
// mirror the PO lines at call time; lines with a missing item or a
// non-positive quantity are skipped rather than failing the receipt.
func materializeReceipt(ctx context.Context, tx TxRepository, po PurchaseOrder, actor shared.Actor, today time.Time) (GoodsReceipt, []GoodsReceiptLine, error) {
	receipt, lines, err := tx.GetReceiptByPO(ctx, po.ID)
	if err == nil {
		return receipt, lines, nil
	}
	if !errors.Is(err, ErrNoReceipt) {
		return GoodsReceipt{}, nil, err
	}

	sentBy, err := tx.SupplierCompanyName(ctx, po.SupplierID)
	if err != nil {
		return GoodsReceipt{}, nil, err
	}
	if sentBy == "" {
		sentBy = "Unknown Supplier"
	}

	receiveDate := today
	if po.ReceiveDate != nil {
		receiveDate = *po.ReceiveDate
	}

	receipt = GoodsReceipt{
		POID:         po.ID,
		ReceiptNo:    fmt.Sprintf("GRN-%05d", po.ID),
		ReceiveDate:  receiveDate,
		Status:       ReceiptStatus,
		SentBy:       sentBy,
		ReceiverName: actor.DisplayName,
	}
	receiptID, err := tx.InsertReceipt(ctx, receipt)
	if err != nil {
		return GoodsReceipt{}, nil, err
	}
	receipt.ID = receiptID

	poLines, err := tx.GetPOLines(ctx, po.ID)
	if err != nil {
		return GoodsReceipt{}, nil, err
	}
	for _, poLine := range poLines {
		if poLine.ItemID <= 0 || poLine.Quantity <= 0 {
			continue
		}
		line := GoodsReceiptLine{
			ReceiptID: receiptID,
			ItemID:    poLine.ItemID,
			Quantity:  poLine.Quantity,
			UOM:       ReceiptLineUOM,
			Warehouse: ReceiptLineWarehouse,
		}
		if err := tx.InsertReceiptLine(ctx, line); err != nil {
			return GoodsReceipt{}, nil, err
		}
		lines = append(lines, line)
	}

	if err := tx.SetReceiveDateIfUnset(ctx, po.ID, receiveDate); err != nil {
		return GoodsReceipt{}, nil, err
	}
	return receipt, lines, nil
}
