package models

// IngredientClasses are the labels of the bundled ingredient detector.
var IngredientClasses = MustFromNames("ingredients-v1",
	"apple", "banana", "orange", "broccoli", "carrot",
)

// FoodClasses are the COCO labels that name something you can cook with.
var FoodClasses = []string{
	"banana", "apple", "sandwich", "orange", "broccoli", "carrot", "hot dog", "pizza", "donut", "cake",
}

var cocoNames = []string{
	"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck", "boat",
	"traffic light", "fire hydrant", "stop sign", "parking meter", "bench", "bird", "cat", "dog", "horse",
	"sheep", "cow", "elephant", "bear", "zebra", "giraffe", "backpack", "umbrella", "handbag", "tie",
	"suitcase", "frisbee", "skis", "snowboard", "sports ball", "kite", "baseball bat", "baseball glove",
	"skateboard", "surfboard", "tennis racket", "bottle", "wine glass", "cup", "fork", "knife", "spoon",
	"bowl", "banana", "apple", "sandwich", "orange", "broccoli", "carrot", "hot dog", "pizza", "donut",
	"cake", "chair", "couch", "potted plant", "bed", "dining table", "toilet", "tv", "laptop", "mouse",
	"remote", "keyboard", "cell phone", "microwave", "oven", "toaster", "sink", "refrigerator", "book",
	"clock", "vase", "scissors", "teddy bear", "hair drier", "toothbrush",
}

// YOLOClasses is the 80-class COCO table as exported by YOLO models.
var YOLOClasses = MustFromNames("coco-80", cocoNames...)

// COCOClasses is the 80-class COCO table with index 0 reserved for the background.
var COCOClasses = MustFromNames("coco-81", append([]string{"__background__"}, cocoNames...)...)
